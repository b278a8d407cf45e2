package search

import (
	"context"
	"sort"
	"sync"

	"github.com/turnsearch/turnsearch/internal/embed"
	"github.com/turnsearch/turnsearch/internal/pkg/logger"
	"github.com/turnsearch/turnsearch/internal/qdrant"
	"github.com/turnsearch/turnsearch/internal/search/reranker"
	"github.com/turnsearch/turnsearch/internal/search/result"
)

// SessionAwareConfig configures the two-stage hierarchical retriever (§4.7).
type SessionAwareConfig struct {
	TopSessions           int
	TurnsPerSession       int
	FinalTopK             int
	SessionCollection     string
	TurnCollection        string
	SessionScoreThreshold float32
	ParallelTurnRetrieval bool

	RerankTier string // empty disables reranking
}

// DefaultSessionAwareConfig returns the spec's defaults.
func DefaultSessionAwareConfig() SessionAwareConfig {
	return SessionAwareConfig{
		TopSessions:           5,
		TurnsPerSession:       3,
		FinalTopK:             10,
		SessionScoreThreshold: 0.3,
		ParallelTurnRetrieval: true,
	}
}

// SessionAwareRetriever is the two-stage hierarchical retriever (§4.7):
// session selection, then per-session turn retrieval, then optional rerank.
type SessionAwareRetriever struct {
	store        *qdrant.Client
	embedFactory *embed.Factory
	router       *reranker.Router
	cfg          SessionAwareConfig
	log          *logger.Logger
}

// NewSessionAwareRetriever builds a session-aware retriever.
func NewSessionAwareRetriever(store *qdrant.Client, embedFactory *embed.Factory, router *reranker.Router, cfg SessionAwareConfig, log *logger.Logger) *SessionAwareRetriever {
	return &SessionAwareRetriever{store: store, embedFactory: embedFactory, router: router, cfg: cfg, log: log}
}

type sessionMatch struct {
	id      string
	score   float32
	summary string
}

// Retrieve runs the two-stage retrieval.
func (s *SessionAwareRetriever) Retrieve(ctx context.Context, q Query) ([]result.Item, error) {
	dense, err := s.embedFactory.TextDense()
	if err != nil {
		return nil, err
	}
	queryVec, err := dense.EmbedQuery(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	filter := &qdrant.SearchFilter{TenantID: q.Filters.TenantID}
	threshold := s.cfg.SessionScoreThreshold
	sessionResults, err := s.store.Query(ctx, s.cfg.SessionCollection, qdrant.VectorTextDense, queryVec, filter, uint64(s.cfg.TopSessions), &threshold)
	if err != nil {
		return nil, err
	}
	if len(sessionResults) == 0 {
		return nil, nil
	}

	sessions := make([]sessionMatch, len(sessionResults))
	for i, sr := range sessionResults {
		summary, _ := sr.Payload["summary"].(string)
		sessions[i] = sessionMatch{id: sr.ID, score: sr.Score, summary: summary}
	}

	turns := s.gatherTurns(ctx, q, sessions)

	if len(turns) > s.cfg.FinalTopK && s.cfg.RerankTier != "" {
		ranked, _, degraded := s.router.Rerank(ctx, q.Text, turns, s.cfg.RerankTier, s.cfg.FinalTopK, 5000, "")
		if !degraded {
			return ranked, nil
		}
		s.log.Warn("session-aware rerank degraded, falling back to sort-by-score")
	}

	sort.SliceStable(turns, func(i, j int) bool { return turns[i].Score > turns[j].Score })
	if len(turns) > s.cfg.FinalTopK {
		turns = turns[:s.cfg.FinalTopK]
	}
	return turns, nil
}

func (s *SessionAwareRetriever) gatherTurns(ctx context.Context, q Query, sessions []sessionMatch) []result.Item {
	perSession := make([][]result.Item, len(sessions))

	fetch := func(i int, sess sessionMatch) {
		filter := &qdrant.SearchFilter{TenantID: q.Filters.TenantID, SessionID: sess.id}
		dense, err := s.embedFactory.TextDense()
		if err != nil {
			s.log.Warn("session-aware turn retrieval failed", "session_id", sess.id, "error", err)
			return
		}
		vec, err := dense.EmbedQuery(ctx, q.Text)
		if err != nil {
			s.log.Warn("session-aware turn retrieval failed", "session_id", sess.id, "error", err)
			return
		}
		turnResults, err := s.store.Query(ctx, s.cfg.TurnCollection, qdrant.VectorTurnDense, vec, filter, uint64(s.cfg.TurnsPerSession), nil)
		if err != nil {
			s.log.Warn("session-aware turn retrieval failed", "session_id", sess.id, "error", err)
			return
		}
		items := result.FromStoreResults(turnResults)
		for j := range items {
			items[j].SessionID = sess.id
			items[j].Payload = withSessionContext(items[j].Payload, sess)
		}
		perSession[i] = items
	}

	if s.cfg.ParallelTurnRetrieval {
		var wg sync.WaitGroup
		for i, sess := range sessions {
			wg.Add(1)
			go func(i int, sess sessionMatch) {
				defer wg.Done()
				fetch(i, sess)
			}(i, sess)
		}
		wg.Wait()
	} else {
		for i, sess := range sessions {
			fetch(i, sess)
		}
	}

	var out []result.Item
	for _, items := range perSession {
		out = append(out, items...)
	}
	return out
}

func withSessionContext(payload map[string]any, sess sessionMatch) map[string]any {
	out := make(map[string]any, len(payload)+3)
	for k, v := range payload {
		out[k] = v
	}
	out["session_id"] = sess.id
	out["session_summary"] = sess.summary
	out["session_score"] = sess.score
	return out
}
