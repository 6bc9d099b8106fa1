package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sfallmann/conf-central/database"
	"github.com/sfallmann/conf-central/model"
)

const (
	announcementTemplate = "Last chance to attend! The following conferences are nearly sold out: %s"
	speakerTemplate      = "Featured Speaker: %s in sessions:\n\n%s"

	nearlySoldOut = 5
)

// CacheAnnouncement recomputes the nearly sold out announcement. The cache
// entry is removed when no conference qualifies.
func (s *Service) CacheAnnouncement(ctx context.Context) (string, error) {
	q := database.NewQuery(model.KindConference).
		Filter("seatsAvailable", database.LessOrEqual, nearlySoldOut).
		Filter("seatsAvailable", database.GreaterThan, 0).
		Order("seatsAvailable").
		Order("name").
		Project("name")
	confs, err := database.GetAll(ctx, s.store, q, newConferenceEntity)
	if err != nil {
		return "", fmt.Errorf("query nearly sold out conferences: %w", err)
	}

	if len(confs) == 0 {
		if err := s.cache.Delete(ctx, AnnouncementKey); err != nil {
			return "", fmt.Errorf("clear announcement: %w", err)
		}
		return "", nil
	}

	names := make([]string, 0, len(confs))
	for _, conf := range confs {
		names = append(names, conf.Name)
	}
	announcement := fmt.Sprintf(announcementTemplate, strings.Join(names, ", "))
	if err := s.cache.Set(ctx, AnnouncementKey, announcement); err != nil {
		return "", fmt.Errorf("set announcement: %w", err)
	}
	return announcement, nil
}

// GetAnnouncement returns the cached announcement. The cache is advisory, so
// a failed read answers with an empty message.
func (s *Service) GetAnnouncement(ctx context.Context) model.StringMessage {
	return model.StringMessage{Data: s.cached(ctx, AnnouncementKey)}
}

func (s *Service) GetFeaturedSpeaker(ctx context.Context) model.StringMessage {
	return model.StringMessage{Data: s.cached(ctx, FeaturedSpeakerKey)}
}

func (s *Service) cached(ctx context.Context, key string) string {
	value, _, err := s.cache.Get(ctx, key)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Cache read failed")
		return ""
	}
	return value
}

// CacheFeaturedSpeaker features speaker when they hold more than one session
// in the conference. Otherwise the cached message is left as it is.
func (s *Service) CacheFeaturedSpeaker(ctx context.Context, speaker, websafeConferenceKey string) error {
	if speaker == "" {
		return nil
	}
	conf := new(model.Conference)
	confKey, err := s.lookup(ctx, websafeConferenceKey, model.KindConference, conf)
	if err != nil {
		return err
	}

	q := database.NewQuery(model.KindSession).
		Ancestor(confKey).
		Filter("speaker", database.Equal, speaker)
	sessions, err := database.GetAll(ctx, s.store, q, newSessionEntity)
	if err != nil {
		return fmt.Errorf("query speaker sessions: %w", err)
	}
	if len(sessions) < 2 {
		return nil
	}

	names := make([]string, 0, len(sessions))
	for _, session := range sessions {
		names = append(names, session.Name)
	}
	message := fmt.Sprintf(speakerTemplate, speaker, strings.Join(names, ", "))
	if err := s.cache.Set(ctx, FeaturedSpeakerKey, message); err != nil {
		return fmt.Errorf("set featured speaker: %w", err)
	}
	return nil
}

// RunAnnouncements recomputes the announcement right away and then every
// interval until ctx is cancelled.
func (s *Service) RunAnnouncements(ctx context.Context, interval time.Duration) error {
	log := s.log.With().Str("component", "announcements").Logger()
	ctx = log.WithContext(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if announcement, err := s.CacheAnnouncement(ctx); err != nil {
			log.Err(err).Msg("Failed to refresh announcement")
		} else {
			log.Debug().Str("announcement", announcement).Msg("Announcement refreshed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
