// Package ingestion translates chat-transport location events into live
// registry updates and document-store writes.
package ingestion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bbt-251/geofence-attendance-core/internal/bus"
	"github.com/bbt-251/geofence-attendance-core/internal/models"
	"github.com/bbt-251/geofence-attendance-core/internal/registry"
	"github.com/bbt-251/geofence-attendance-core/internal/store"
	"github.com/bbt-251/geofence-attendance-core/internal/transport"
)

// Broadcaster fans a value out to connected ops dashboard clients
// in-process, independent of the MQTT bus. *api.Feed satisfies this.
type Broadcaster interface {
	Broadcast(payload any)
}

// Service wires the live registry, the document stores, and the event bus
// together to process inbound location events.
type Service struct {
	sessions    *ChatSessionMap
	registry    *registry.Registry
	projects    *store.Projects
	bus         *bus.Bus
	broadcaster Broadcaster
	logger      *zap.Logger
}

// New builds an ingestion Service. broadcaster may be nil.
func New(sessions *ChatSessionMap, reg *registry.Registry, projects *store.Projects, b *bus.Bus, broadcaster Broadcaster, logger *zap.Logger) *Service {
	return &Service{sessions: sessions, registry: reg, projects: projects, bus: b, broadcaster: broadcaster, logger: logger}
}

// OnLocationEvent processes one inbound chat location event: it resolves
// the employee it belongs to, updates the live registry, overwrites the
// employee's currentLocation, and best-effort appends to the location log
// and the event bus. A context that can't be resolved to any employee is
// dropped, not treated as an error.
func (s *Service) OnLocationEvent(ctx context.Context, ev transport.InboundEvent) error {
	if ev.Location == nil {
		return nil
	}

	employeeUID, projectName, ok := s.sessions.Get(ev.ChatID)
	if !ok {
		employeeUID, projectName, ok = s.resolveFromStores(ctx, ev.ChatID)
		if !ok {
			if s.logger != nil {
				s.logger.Warn("ingestion: could not resolve employee context for chat",
					zap.Int64("chatID", ev.ChatID))
			}
			return nil
		}
		s.sessions.Link(ev.ChatID, employeeUID, projectName)
	}

	st, ok := s.projects.Get(projectName)
	if !ok {
		if s.logger != nil {
			s.logger.Warn("ingestion: project store not configured", zap.String("project", projectName))
		}
		return nil
	}

	now := time.Now().UTC()
	var liveUntilMs *int64
	if ev.LivePeriodSecs != nil {
		until := now.Add(time.Duration(*ev.LivePeriodSecs) * time.Second).UnixMilli()
		liveUntilMs = &until
	}
	key := registry.Key{ChatID: ev.ChatID, MessageID: ev.MessageID}
	s.registry.Upsert(key, employeeUID, projectName, liveUntilMs, now)

	loc := &models.CurrentLocation{
		Latitude:      ev.Location.Latitude,
		Longitude:     ev.Location.Longitude,
		Accuracy:      ev.Location.HorizontalAccuracy,
		Heading:       ev.Location.Heading,
		Speed:         ev.Location.Speed,
		Source:        sourceFor(ev),
		IsLive:        ev.LivePeriodSecs != nil || ev.IsEdit,
		UpdatedAt:     now,
		LiveMessageID: ev.MessageID,
		LiveChatID:    ev.ChatID,
	}
	if liveUntilMs != nil {
		t := time.UnixMilli(*liveUntilMs)
		loc.LiveUntil = &t
	}
	if err := loc.Validate(); err != nil {
		if s.logger != nil {
			s.logger.Warn("ingestion: rejecting invalid location", zap.Error(err))
		}
		return nil
	}

	if err := st.UpdateEmployeeLocation(ctx, employeeUID, loc, now); err != nil {
		return err
	}

	log := models.NewLocationLog(employeeUID, loc, ev.ChatID, ev.MessageID, ev.LivePeriodSecs, nil)
	if err := st.AppendLocationLog(ctx, log); err != nil && s.logger != nil {
		s.logger.Warn("ingestion: best-effort location log append failed",
			zap.String("employeeUID", employeeUID), zap.Error(err))
	}

	event := bus.LocationIngestedEvent{
		EmployeeUID: employeeUID,
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,
		IsLive:      loc.IsLive,
		Timestamp:   now,
	}
	s.bus.PublishLocationIngested(event)
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(event)
	}

	return nil
}

func sourceFor(ev transport.InboundEvent) models.LocationSource {
	if ev.LivePeriodSecs != nil || ev.IsEdit {
		return models.SourceTelegramLive
	}
	return models.SourceTelegram
}

func (s *Service) resolveFromStores(ctx context.Context, chatID int64) (employeeUID, projectName string, ok bool) {
	for _, st := range s.projects.Healthy(ctx) {
		emp, err := st.FindEmployeeByChatID(ctx, chatID)
		if err != nil || emp == nil {
			continue
		}
		return emp.UID, st.ProjectName(), true
	}
	return "", "", false
}
