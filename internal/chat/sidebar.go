package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Checker-Finance/chat-client/internal/credstore"
	"github.com/Checker-Finance/chat-client/pkg/model"
)

// Sidebar returns the conversation list shown in the sidebar, served from the
// session cache when present.
func (s *Service) Sidebar(ctx context.Context) ([]model.SidebarItem, error) {
	var items []model.SidebarItem
	ok, err := s.store.SessionGet(ctx, credstore.SessionKeyProjects, &items)
	if err != nil {
		s.logger.Warn("chat.sidebar_cache_read_failed", zap.Error(err))
	}
	if ok && err == nil {
		return items, nil
	}
	return s.RefreshSidebar(ctx)
}

// RefreshSidebar rebuilds the sidebar from the backend and re-caches it.
func (s *Service) RefreshSidebar(ctx context.Context) ([]model.SidebarItem, error) {
	convs, err := s.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]model.SidebarItem, 0, len(convs))
	for _, c := range convs {
		items = append(items, model.SidebarItem{
			ID:   c.ID,
			Name: c.Title,
			URL:  fmt.Sprintf("/chat/%d", c.ID),
		})
	}

	if err := s.store.SessionSet(ctx, credstore.SessionKeyProjects, items); err != nil {
		s.logger.Warn("chat.sidebar_cache_write_failed", zap.Error(err))
	}
	return items, nil
}

func (s *Service) invalidateSidebar(ctx context.Context) {
	if err := s.store.SessionDelete(ctx, credstore.SessionKeyProjects); err != nil {
		s.logger.Warn("chat.sidebar_invalidate_failed", zap.Error(err))
	}
}
