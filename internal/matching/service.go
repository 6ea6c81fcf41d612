package matching

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/peerfuse/match-app/internal/messaging"
	"github.com/peerfuse/match-app/internal/metrics"
	"github.com/peerfuse/match-app/internal/pairing"
	"github.com/peerfuse/match-app/internal/profile"
)

const sweepInterval = 5 * time.Second

// ProfileSource supplies profile records to the matcher. Implemented by the
// Postgres-backed profile store; narrowed to an interface so tests can feed
// in-memory pools.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (*profile.Record, error)
	List(ctx context.Context) ([]profile.Record, error)
}

// Service is the background matching service. It owns one RematchSession per
// actively searching user, the Redis rejection ledger, and the pairing
// handshake, and talks to gateways exclusively over NATS.
type Service struct {
	profiles ProfileSource
	ledger   *Ledger
	pairings *pairing.Store
	nats     *messaging.NATSClient
	finder   *Finder

	mu       sync.Mutex
	sessions map[string]*RematchSession

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates a matching service.
func NewService(profiles ProfileSource, rdb *redis.Client, nats *messaging.NATSClient, weights WeightTable) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		profiles: profiles,
		ledger:   NewLedger(rdb),
		pairings: pairing.NewStore(rdb),
		nats:     nats,
		finder:   NewFinder(weights),
		sessions: make(map[string]*RematchSession),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the NATS subjects and starts the pairing sweeper.
func (s *Service) Start() error {
	subs := []struct {
		name string
		sub  func(func([]byte)) error
		h    func([]byte)
	}{
		{"search", s.nats.SubscribeSearchRequest, s.handleSearch},
		{"next", s.nats.SubscribeNextRequest, s.handleNext},
		{"reject", s.nats.SubscribeRejectRequest, s.handleReject},
		{"reset", s.nats.SubscribeResetRequest, s.handleReset},
		{"pairing request", s.nats.SubscribePairingRequest, s.handlePairingRequest},
		{"pairing accept", s.nats.SubscribePairingAccept, s.handlePairingAccept},
		{"pairing decline", s.nats.SubscribePairingDecline, s.handlePairingDecline},
	}
	for _, sub := range subs {
		if err := sub.sub(sub.h); err != nil {
			return err
		}
	}

	go s.sweepLoop()

	log.Println("[matcher] service started")
	return nil
}

// Stop gracefully shuts down the matching service.
func (s *Service) Stop() {
	s.cancel()
	log.Println("[matcher] service stopped")
}

// session returns the user's active rematch session, or nil.
func (s *Service) session(userID string) *RematchSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID]
}

func (s *Service) setSession(userID string, sess *RematchSession) {
	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()
}

func (s *Service) dropSession(userID string) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

// poolFunc builds the fresh-fetch function handed to a RematchSession. Every
// search refetches the full pool since profiles may have changed between calls.
func (s *Service) poolFunc() PoolFunc {
	return func(ctx context.Context) ([]profile.Record, error) {
		records, err := s.profiles.List(ctx)
		if err != nil {
			return nil, err
		}
		metrics.CandidatePoolSize.Set(float64(len(records)))
		return records, nil
	}
}

func (s *Service) handleSearch(data []byte) {
	var req SearchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[matcher] invalid search request: %v", err)
		return
	}

	outcome := s.runSearch(s.ctx, req.UserID, req.Limit, "")
	s.publish(req.UserID, outcome)
}

func (s *Service) handleNext(data []byte) {
	var req NextRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[matcher] invalid next request: %v", err)
		return
	}

	sess := s.session(req.UserID)
	if sess == nil {
		s.publish(req.UserID, SearchOutcome{
			Status:  OutcomeError,
			Message: "no active search, run find_match first",
		})
		return
	}

	if sc := sess.Next(); sc != nil {
		s.publish(req.UserID, s.okOutcome(sess, sc))
		return
	}

	s.publish(req.UserID, SearchOutcome{
		Status:  OutcomeExhausted,
		Message: sess.Message(),
	})
}

func (s *Service) handleReject(data []byte) {
	var req RejectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[matcher] invalid reject request: %v", err)
		return
	}

	// The ledger lives in Redis so rejections survive reconnects and
	// matcher restarts; the in-memory session mirrors it.
	if err := s.ledger.Add(s.ctx, req.UserID, req.CandidateID); err != nil {
		log.Printf("[matcher] ledger add %s: %v", req.UserID, err)
	}
	metrics.RejectionsTotal.Inc()

	outcome := s.runSearch(s.ctx, req.UserID, 0, req.CandidateID)
	s.publish(req.UserID, outcome)
}

func (s *Service) handleReset(data []byte) {
	var req ResetRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[matcher] invalid reset request: %v", err)
		return
	}

	if err := s.ledger.Clear(s.ctx, req.UserID); err != nil {
		log.Printf("[matcher] ledger clear %s: %v", req.UserID, err)
	}
	s.dropSession(req.UserID)
	log.Printf("[matcher] search reset for %s", req.UserID)
}

// runSearch creates (or recreates) the user's rematch session and runs a
// fresh search. rejectID, when non-empty, is added to the session ledger
// before searching (the Redis ledger was already updated by the caller).
func (s *Service) runSearch(ctx context.Context, userID string, limit int, rejectID string) SearchOutcome {
	start := time.Now()
	defer func() {
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	target, err := s.profiles.Get(ctx, userID)
	if err != nil {
		log.Printf("[matcher] load profile %s: %v", userID, err)
		metrics.SearchesTotal.WithLabelValues(OutcomeError).Inc()
		return SearchOutcome{Status: OutcomeError, Message: "profile data unavailable, try again"}
	}
	if target == nil {
		metrics.SearchesTotal.WithLabelValues(OutcomeError).Inc()
		return SearchOutcome{Status: OutcomeError, Message: "save a profile before searching"}
	}

	sess := s.session(userID)
	if sess == nil || rejectID == "" {
		// A plain search always starts a fresh session over the latest
		// profile; rejections reuse the existing one when present.
		sess = NewRematchSession(s.finder, *target, s.poolFunc(), limit)
		rejected, err := s.ledger.Members(ctx, userID)
		if err != nil {
			log.Printf("[matcher] ledger members %s: %v", userID, err)
		}
		sess.SeedRejections(rejected)
		s.setSession(userID, sess)
	}

	if rejectID != "" {
		err = sess.Reject(ctx, rejectID)
	} else {
		err = sess.Search(ctx)
	}

	switch {
	case errors.Is(err, profile.ErrInvalidProfile):
		metrics.SearchesTotal.WithLabelValues("invalid_profile").Inc()
		return SearchOutcome{Status: OutcomeError, Message: "profile needs at least one strength and one weakness"}
	case errors.Is(err, ErrDataUnavailable):
		metrics.SearchesTotal.WithLabelValues(OutcomeError).Inc()
		return SearchOutcome{Status: OutcomeError, Message: "candidate data unavailable, try again"}
	case err != nil:
		log.Printf("[matcher] search %s: %v", userID, err)
		metrics.SearchesTotal.WithLabelValues(OutcomeError).Inc()
		return SearchOutcome{Status: OutcomeError, Message: "search failed, try again"}
	}

	if sess.State() == StateExhausted {
		metrics.SearchesTotal.WithLabelValues(StatusNoMatches).Inc()
		return SearchOutcome{Status: StatusNoMatches, Message: sess.Message()}
	}

	metrics.SearchesTotal.WithLabelValues(StatusOK).Inc()
	current := sess.Current()
	metrics.TopScore.Observe(float64(current.Score))
	return s.okOutcome(sess, current)
}

func (s *Service) okOutcome(sess *RematchSession, sc *ScoredCandidate) SearchOutcome {
	tier := Classify(sc.Score)
	return SearchOutcome{
		Status: StatusOK,
		Rank:   sess.Cursor(),
		Total:  sess.Len(),
		Match:  sc,
		Tier:   &tier,
	}
}

func (s *Service) publish(userID string, outcome SearchOutcome) {
	if err := PublishOutcome(s.nats, userID, outcome); err != nil {
		log.Printf("[matcher] publish outcome for %s: %v", userID, err)
	}
}

// ---------------------------------------------------------------------------
// Pairing handshake
// ---------------------------------------------------------------------------

func (s *Service) handlePairingRequest(data []byte) {
	var req PairingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[matcher] invalid pairing request: %v", err)
		return
	}

	partner, err := s.profiles.Get(s.ctx, req.PartnerID)
	if err != nil || partner == nil {
		log.Printf("[matcher] pairing request %s -> %s: partner unavailable (%v)",
			req.UserID, req.PartnerID, err)
		return
	}

	pairingID := uuid.New().String()
	roomID := uuid.New().String()

	if err := s.pairings.CreatePending(s.ctx, pairingID, req.UserID, req.PartnerID, roomID); err != nil {
		log.Printf("[matcher] create pairing %s: %v", pairingID, err)
		return
	}

	ev := PairingEvent{
		Event:          PairingProposed,
		PairingID:      pairingID,
		AcceptDeadline: int(pairing.AcceptDeadline.Seconds()),
	}

	// Each side sees the other participant's display name.
	toRequester := ev
	toRequester.PartnerID = req.PartnerID
	toRequester.PartnerName = partner.DisplayName
	if err := PublishPairingEvent(s.nats, req.UserID, toRequester); err != nil {
		log.Printf("[matcher] pairing notify %s: %v", req.UserID, err)
	}

	toPartner := ev
	toPartner.PartnerID = req.UserID
	if requester, err := s.profiles.Get(s.ctx, req.UserID); err == nil && requester != nil {
		toPartner.PartnerName = requester.DisplayName
	}
	if err := PublishPairingEvent(s.nats, req.PartnerID, toPartner); err != nil {
		log.Printf("[matcher] pairing notify %s: %v", req.PartnerID, err)
	}

	log.Printf("[matcher] pairing proposed: id=%s a=%s b=%s", pairingID, req.UserID, req.PartnerID)
}

func (s *Service) handlePairingAccept(data []byte) {
	var req PairingAnswer
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[matcher] invalid pairing accept: %v", err)
		return
	}

	result, err := s.pairings.Accept(s.ctx, req.PairingID, req.UserID)
	if err != nil {
		log.Printf("[matcher] pairing accept %s by %s: %v", req.PairingID, req.UserID, err)
		return
	}

	switch result {
	case 1:
		p, err := s.pairings.Get(s.ctx, req.PairingID)
		if err != nil || p == nil {
			log.Printf("[matcher] pairing %s activated but unreadable: %v", req.PairingID, err)
			return
		}
		metrics.ActivePairings.Inc()
		publishPairingBoth(s.nats, p.UserA, p.UserB, PairingEvent{
			Event:         PairingActive,
			PairingID:     p.PairingID,
			MeetingRoomID: p.MeetingRoomID,
		})
		log.Printf("[matcher] pairing active: id=%s room=%s", p.PairingID, p.MeetingRoomID)
	case 0:
		// Waiting for the partner.
	default:
		log.Printf("[matcher] pairing accept %s by %s rejected (code %d)", req.PairingID, req.UserID, result)
	}
}

func (s *Service) handlePairingDecline(data []byte) {
	var req PairingAnswer
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[matcher] invalid pairing decline: %v", err)
		return
	}

	p, err := s.pairings.Get(s.ctx, req.PairingID)
	if err != nil || p == nil {
		return
	}
	if !p.IsParticipant(req.UserID) {
		log.Printf("[matcher] pairing decline %s: %s not a participant", req.PairingID, req.UserID)
		return
	}

	if err := s.pairings.Delete(s.ctx, req.PairingID); err != nil {
		log.Printf("[matcher] delete pairing %s: %v", req.PairingID, err)
	}

	publishPairingBoth(s.nats, p.UserA, p.UserB, PairingEvent{
		Event:     PairingDeclined,
		PairingID: p.PairingID,
	})
	log.Printf("[matcher] pairing declined: id=%s by=%s", p.PairingID, req.UserID)
}

// sweepLoop expires pending pairings whose accept deadline passed and
// notifies both participants.
func (s *Service) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			log.Println("[matcher] sweep loop stopped")
			return
		case <-ticker.C:
			s.sweepExpiredPairings()
		}
	}
}

func (s *Service) sweepExpiredPairings() {
	expired, err := s.pairings.ExpiredPending(s.ctx, time.Now())
	if err != nil {
		return
	}

	for _, pairingID := range expired {
		p, err := s.pairings.Get(s.ctx, pairingID)
		if err != nil {
			continue
		}
		if p == nil || p.Status != pairing.StatusPendingAccept {
			// Activated or already removed; only the tracking entry is stale.
			if err := s.pairings.ClearPending(s.ctx, pairingID); err != nil {
				log.Printf("[matcher] sweep clear %s: %v", pairingID, err)
			}
			continue
		}

		publishPairingBoth(s.nats, p.UserA, p.UserB, PairingEvent{
			Event:     PairingTimedOut,
			PairingID: pairingID,
		})
		log.Printf("[matcher] accept deadline expired for pairing=%s", pairingID)
		if err := s.pairings.Delete(s.ctx, pairingID); err != nil {
			log.Printf("[matcher] sweep delete %s: %v", pairingID, err)
		}
	}
}
