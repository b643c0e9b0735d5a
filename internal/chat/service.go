package chat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"chatbridge/internal/agent"
	"chatbridge/internal/cache"
	"chatbridge/pkg/logging/logging"
)

// ErrSessionNotFound reports a lookup of an absent session. Not fatal;
// handlers map it to a 404.
var ErrSessionNotFound = errors.New("chat: session not found")

// CachedPayload is the dual response stored under one fingerprint.
// Immutable once stored; a fingerprint is never overwritten.
type CachedPayload struct {
	AugmentedOutput string    `json:"augmented_output"`
	PlainOutput     string    `json:"plain_output"`
	Sources         []Source  `json:"sources"`
	CreatedAt       time.Time `json:"created_at"`
}

// ResponseEnvelope is the value returned to the caller per request.
type ResponseEnvelope struct {
	Input             string       `json:"input"`
	History           History      `json:"history"`
	Output            string       `json:"output"`
	PlainOutput       string       `json:"no_rag_output,omitempty"`
	IntermediateSteps []agent.Step `json:"intermediate_steps"`
	Sources           []Source     `json:"sources"`
}

// Mode selects the generation paths for stateless queries.
type Mode string

const (
	ModeAugmented Mode = "augmented"
	ModePlain     Mode = "plain"
	ModeDual      Mode = "dual"
)

type Config struct {
	CacheTTL      time.Duration // default: 1h
	RetrievalTool string        // default: DefaultRetrievalTool
}

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.RetrievalTool == "" {
		c.RetrievalTool = DefaultRetrievalTool
	}
	return c
}

// Service composes the session store, the query cache and the two
// generator paths for each incoming message.
type Service struct {
	agents   *agent.Manager
	sessions *SessionStore
	cache    cache.QueryCache
	cfg      Config
}

func NewService(agents *agent.Manager, sessions *SessionStore, qc cache.QueryCache, cfg Config) *Service {
	return &Service{
		agents:   agents,
		sessions: sessions,
		cache:    qc,
		cfg:      cfg.withDefaults(),
	}
}

// Sessions exposes the underlying session store.
func (s *Service) Sessions() *SessionStore {
	return s.sessions
}

// ProcessMessage handles one conversational message: resolve the
// session, derive the fingerprint over the pre-turn history, serve from
// cache on a hit, otherwise invoke both generators and commit the result
// to cache and session state.
//
// The session lock is held for the whole critical section so concurrent
// requests for the same session cannot interleave their user/assistant
// pairs; requests for different sessions proceed fully in parallel.
func (s *Service) ProcessMessage(ctx context.Context, sessionID, text string) (*ResponseEnvelope, error) {
	start := time.Now()
	logger := logging.L(ctx)

	logger.Info("chat request",
		zap.String("session_id", sessionID),
		zap.Int("input_length", len(text)),
	)

	sess := s.sessions.GetOrCreate(sessionID)
	sess.Lock()
	defer sess.Unlock()

	// Fingerprint over the history BEFORE this turn is appended.
	prior := sess.historyLocked()
	key := DeriveKey(text, prior, sessionID)
	cacheKey := key.String()

	cachedBytes, hit, cacheErr := s.cache.Get(ctx, cacheKey)
	if cacheErr != nil {
		// Cache is best-effort; treat as miss.
		logger.Warn("query_cache_get_error", zap.Error(cacheErr))
	}

	if hit {
		var payload CachedPayload
		if err := json.Unmarshal(cachedBytes, &payload); err != nil {
			logger.Warn("query_cache_unmarshal_error", zap.Error(err))
		} else {
			sess.appendLocked(RoleUser, text)
			sess.appendLocked(RoleAssistant, payload.AugmentedOutput)

			logger.Info("cache_decision",
				zap.String("session_id", sessionID),
				zap.String("hash", key.Hash),
				zap.Bool("cache_hit", true),
				zap.Duration("total_latency_ms", time.Since(start)),
			)

			return &ResponseEnvelope{
				Input:       text,
				History:     sess.historyLocked(),
				Output:      payload.AugmentedOutput,
				PlainOutput: payload.PlainOutput,
				// Steps are not re-derivable from cache.
				IntermediateSteps: []agent.Step{},
				Sources:           payload.Sources,
			}, nil
		}
	}

	// Miss: the user turn goes into history before invocation so both
	// generators see the same up-to-date context. It is NOT rolled back
	// if generation fails; the question stays part of the record.
	sess.appendLocked(RoleUser, text)

	augmented, plain, err := s.invokeBoth(ctx, text, sess.historyLocked())
	if err != nil {
		logger.Error("generation failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return nil, err
	}

	sources := ExtractSources(augmented.IntermediateSteps, s.cfg.RetrievalTool)

	// The augmented path is authoritative for conversational continuity.
	sess.appendLocked(RoleAssistant, augmented.Output)

	s.storePayload(ctx, cacheKey, CachedPayload{
		AugmentedOutput: augmented.Output,
		PlainOutput:     plain.Output,
		Sources:         sources,
		CreatedAt:       time.Now().UTC(),
	})

	logger.Info("cache_decision",
		zap.String("session_id", sessionID),
		zap.String("hash", key.Hash),
		zap.Bool("cache_hit", false),
		zap.Duration("total_latency_ms", time.Since(start)),
	)

	return &ResponseEnvelope{
		Input:             text,
		History:           sess.historyLocked(),
		Output:            augmented.Output,
		PlainOutput:       plain.Output,
		IntermediateSteps: augmented.IntermediateSteps,
		Sources:           sources,
	}, nil
}

// storePayload writes a fresh payload under the fingerprint. Cache
// anomalies are absorbed: a conflicting store is an internal-invariant
// violation, logged, and the fresh result is used without trusting the
// cache; other errors degrade to "no cache write".
func (s *Service) storePayload(ctx context.Context, cacheKey string, payload CachedPayload) {
	logger := logging.L(ctx)

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("marshal_payload_error", zap.Error(err))
		return
	}

	switch err := s.cache.Set(ctx, cacheKey, payloadBytes, s.cfg.CacheTTL); {
	case errors.Is(err, cache.ErrConflict):
		logger.Error("query_cache_conflict",
			zap.String("cache_key", cacheKey),
		)
	case err != nil:
		logger.Warn("query_cache_set_error", zap.Error(err))
	}
}

// ProcessQuery is the stateless single-shot variant: no session
// persistence and no cache tie-in. The caller supplies the history, if
// any, and picks the mode.
func (s *Service) ProcessQuery(ctx context.Context, query string, history History, mode Mode) (*ResponseEnvelope, error) {
	logger := logging.L(ctx)

	logger.Info("query request",
		zap.String("mode", string(mode)),
		zap.Int("input_length", len(query)),
		zap.Int("history_length", len(history)),
	)

	switch mode {
	case ModeAugmented, ModePlain, ModeDual:
	case "":
		mode = ModeAugmented
	default:
		return nil, errors.New("chat: unknown query mode " + string(mode))
	}

	in := agent.Input{Query: query, History: history.Messages()}

	if mode == ModeDual {
		augmented, plain, err := s.invokeBoth(ctx, query, history)
		if err != nil {
			return nil, err
		}
		return &ResponseEnvelope{
			Input:             query,
			History:           history,
			Output:            augmented.Output,
			PlainOutput:       plain.Output,
			IntermediateSteps: augmented.IntermediateSteps,
			Sources:           ExtractSources(augmented.IntermediateSteps, s.cfg.RetrievalTool),
		}, nil
	}

	gen := s.agents.Augmented
	if mode == ModePlain {
		gen = s.agents.Plain
	}

	result, err := gen.Invoke(ctx, in)
	if err != nil {
		return nil, err
	}

	envelope := &ResponseEnvelope{
		Input:             query,
		History:           history,
		Output:            result.Output,
		IntermediateSteps: []agent.Step{},
		Sources:           []Source{},
	}
	if mode == ModeAugmented {
		envelope.IntermediateSteps = result.IntermediateSteps
		envelope.Sources = ExtractSources(result.IntermediateSteps, s.cfg.RetrievalTool)
	}
	return envelope, nil
}

// DeleteSession removes one session, or every session when given the
// AllSessions sentinel. Returns true if something was deleted; clearing
// all always reports true.
func (s *Service) DeleteSession(sessionID string) bool {
	if sessionID == AllSessions {
		s.sessions.DeleteAll()
		return true
	}
	return s.sessions.Delete(sessionID)
}

// GetSession returns the history for one session keyed by its id, or
// every session's history when given the AllSessions sentinel.
func (s *Service) GetSession(sessionID string) (map[string]History, error) {
	if sessionID == AllSessions {
		return s.sessions.GetAll(), nil
	}
	history, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return map[string]History{sessionID: history}, nil
}
