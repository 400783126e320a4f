// Package orchestrator drives one conversation: it owns the transcript, the
// per-turn understanding record, the active clarification card, and the
// chain-fatigue counter, and it folds the reasoning service's phase-event
// stream into a terminal turn outcome.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	stderrors "finchat-engine/internal/common/errors"
	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/common/metrics"
	"finchat-engine/internal/mcq"
	"finchat-engine/internal/models"
	"finchat-engine/internal/reasoning"
	"finchat-engine/internal/store"
)

// Streamer is the reasoning-service surface the orchestrator consumes.
// *reasoning.Client satisfies it; tests substitute scripted streams.
type Streamer interface {
	Stream(ctx context.Context, req reasoning.TurnRequest) (<-chan models.PhaseEvent, error)
	Timeout() time.Duration
}

// RouteCacher stores route classifications keyed by normalized query text.
// A nil cacher disables caching.
type RouteCacher interface {
	Get(ctx context.Context, query string) (*models.RouteClassification, error)
	Put(ctx context.Context, query string, route *models.RouteClassification) error
}

// PhraseMatcher serves deterministic training-phrase matches consulted
// before the reasoning service. *store.PhraseIndex satisfies it.
type PhraseMatcher interface {
	Match(query string) (*store.PhraseMatch, error)
}

// TurnResult is the terminal disposition of one HandleMessage call.
type TurnResult struct {
	Outcome       models.TurnOutcome          `json:"outcome"`
	Understanding *models.AgentUnderstanding  `json:"understanding"`
	MCQ           *models.MCQData             `json:"mcq,omitempty"`
	Response      string                      `json:"response,omitempty"`
	Route         *models.RouteClassification `json:"route,omitempty"`
}

// Conversation is the single-writer state machine for one chat session.
// All mutation happens under mu; the event loop itself runs on a snapshot
// and commits only if its turn is still current, so a newer message always
// wins over an in-flight turn.
type Conversation struct {
	id       string
	streamer Streamer
	cache    RouteCacher
	matcher  PhraseMatcher
	log      logger.Logger
	now      func() time.Time

	mu            sync.Mutex
	messages      []models.Message
	activeCard    *mcq.Card
	pendingQuery  string
	chain         mcq.ChainCounter
	lastCategory  models.RouteCategory
	understanding *models.AgentUnderstanding
	currentTurn   string
	cancelTurn    context.CancelFunc
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithRouteCache wires a route cache consulted before and updated after
// each streamed turn.
func WithRouteCache(cache RouteCacher) Option {
	return func(c *Conversation) { c.cache = cache }
}

// WithPhraseMatcher wires a phrase index consulted for a fast-path route
// when the cache has no entry for the query.
func WithPhraseMatcher(matcher PhraseMatcher) Option {
	return func(c *Conversation) { c.matcher = matcher }
}

// WithClock overrides the time source. Tests use this to exercise card
// expiry without sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) { c.now = now }
}

// NewConversation creates an empty conversation bound to a reasoning stream.
func NewConversation(streamer Streamer, log logger.Logger, opts ...Option) *Conversation {
	c := &Conversation{
		id:       uuid.New().String(),
		streamer: streamer,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithFields(map[string]interface{}{"conversationId": c.id})
	return c
}

// ID returns the conversation identifier.
func (c *Conversation) ID() string { return c.id }

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Understanding returns the most recent turn's understanding record.
func (c *Conversation) Understanding() *models.AgentUnderstanding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.understanding
}

// ActiveMCQ returns the pending clarification card after lazy expiry, or nil.
func (c *Conversation) ActiveMCQ() *models.MCQData {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireCardLocked()
	if c.activeCard == nil {
		return nil
	}
	data := c.activeCard.Data
	return &data
}

// ChainCount exposes the consecutive-clarification counter.
func (c *Conversation) ChainCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chain.Count()
}

func (c *Conversation) expireCardLocked() {
	if c.activeCard == nil {
		return
	}
	if expired, did := c.activeCard.CheckExpiry(c.now()); did {
		c.log.Info("clarification card expired", map[string]interface{}{
			"mcqType": string(expired.Data.MCQType),
		})
		c.activeCard = nil
		c.pendingQuery = ""
	}
}

// HandleMessage processes one user message to a terminal outcome. If a turn
// is already in flight it is cancelled first; the newest message always
// wins. The call blocks until the turn completes, suspends for
// clarification, errors, or is itself cancelled by a yet newer message.
func (c *Conversation) HandleMessage(ctx context.Context, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	c.messages = append(c.messages, models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Text:      text,
		CreatedAt: c.now(),
	})
	c.expireCardLocked()

	query := text
	var turnContext map[string]interface{}

	if c.activeCard != nil {
		if value, ok := matchOption(&c.activeCard.Data, text); ok {
			selected, applied := c.activeCard.Select(value, c.now())
			*c.activeCard = selected
			if !applied {
				// Raced with expiry between the check above and Select.
				c.activeCard = nil
				c.pendingQuery = ""
				c.chain.ResetForNewQuery()
			} else if selected.Data.Status == models.MCQCancelled {
				card := selected.Data
				c.activeCard = nil
				c.pendingQuery = ""
				c.chain.RecordResolvedTurn()
				response := "Okay, I won't proceed with that."
				c.messages = append(c.messages, models.Message{
					ID:        uuid.New().String(),
					Role:      models.RoleAssistant,
					Text:      response,
					CreatedAt: c.now(),
				})
				c.mu.Unlock()
				return &TurnResult{
					Outcome:  models.OutcomeCancelled,
					Response: response,
					MCQ:      &card,
				}, nil
			} else {
				// A resolved card continues the suspended query with the
				// selection as extra context. The chain counter is NOT
				// reset: a follow-up prompt on this thread still counts
				// toward fatigue.
				turnContext = map[string]interface{}{
					"clarification": map[string]interface{}{
						"question":  selected.Data.Question,
						"selection": value,
					},
				}
				if c.pendingQuery != "" {
					query = c.pendingQuery
				}
				c.activeCard = nil
				c.pendingQuery = ""
			}
		} else {
			// Free text always beats a pending card.
			overridden, _ := c.activeCard.Override(c.now())
			c.log.Info("clarification card overridden by new query", map[string]interface{}{
				"mcqType": string(overridden.Data.MCQType),
			})
			c.activeCard = nil
			c.pendingQuery = ""
			c.chain.ResetForNewQuery()
		}
	} else {
		c.chain.ResetForNewQuery()
	}

	// Preempt any in-flight turn.
	if c.cancelTurn != nil {
		c.cancelTurn()
	}
	turnID := uuid.New().String()
	turnCtx, cancel := context.WithTimeout(ctx, c.streamer.Timeout())
	c.currentTurn = turnID
	c.cancelTurn = cancel
	prevCategory := c.lastCategory
	c.mu.Unlock()

	defer cancel()
	result, err := c.runTurn(turnCtx, turnID, query, prevCategory, turnContext)
	if err != nil {
		return nil, err
	}
	c.commit(turnID, query, result)
	return result, nil
}

// runTurn executes the streamed phase loop on a fresh understanding record.
func (c *Conversation) runTurn(ctx context.Context, turnID, query string, prevCategory models.RouteCategory, turnContext map[string]interface{}) (*TurnResult, error) {
	start := c.now()
	u := &models.AgentUnderstanding{}

	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, query); err == nil && cached != nil {
			cached.Path = models.PathCached
			u.Route = cached
			u.Phase = models.PhaseRouting
		}
	}
	if u.Route == nil && c.matcher != nil {
		if match, err := c.matcher.Match(query); err == nil && match != nil {
			intent := match.Intent
			u.Route = &models.RouteClassification{
				Path:       models.PathFast,
				Confidence: intent.Confidence,
				Intent:     &intent,
			}
			u.Phase = models.PhaseRouting
			c.log.Debug("fast-path phrase match", map[string]interface{}{
				"intent":     intent.Name,
				"confidence": intent.Confidence,
			})
		}
	}

	req := reasoning.TurnRequest{
		ConversationID: c.id,
		Query:          query,
		Category:       prevCategory,
		Context:        turnContext,
	}
	if u.Route != nil {
		req.MatchedIntent = u.Route.Intent
	}
	events, err := c.streamer.Stream(ctx, req)
	if err != nil {
		metrics.TurnsFailed.WithLabelValues(string(stderrors.CodeOf(err))).Inc()
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return c.finishInterrupted(ctx, u, start), nil

		case ev, ok := <-events:
			if !ok {
				if err := ctx.Err(); err != nil {
					return c.finishInterrupted(ctx, u, start), nil
				}
				// Stream ended without a complete event.
				stdErr := stderrors.NewStreamInterruptedError(string(u.Phase))
				u.Error = stdErr.Message
				metrics.TurnsFailed.WithLabelValues(string(stderrors.ErrCodeStreamInterrupted)).Inc()
				return &TurnResult{Outcome: models.OutcomeError, Understanding: u, Route: u.Route}, nil
			}

			outcome := applyEvent(u, prevCategory, ev)
			switch {
			case outcome.raisedMCQ != nil:
				return c.finishMCQ(u, outcome.raisedMCQ, start), nil
			case outcome.failed != "":
				metrics.TurnsFailed.WithLabelValues(string(stderrors.ErrCodeReasoningFailed)).Inc()
				return &TurnResult{Outcome: models.OutcomeError, Understanding: u, Route: u.Route}, nil
			case outcome.done:
				return c.finishComplete(ctx, u, query, start), nil
			}
		}
	}
}

func (c *Conversation) finishInterrupted(ctx context.Context, u *models.AgentUnderstanding, start time.Time) *TurnResult {
	if ctx.Err() == context.DeadlineExceeded {
		stdErr := stderrors.NewReasoningTimeoutError("turn")
		u.Error = stdErr.Message
		metrics.TurnsFailed.WithLabelValues(string(stderrors.ErrCodeReasoningTimeout)).Inc()
		c.log.Warn("turn deadline exceeded", map[string]interface{}{
			"phase":   string(u.Phase),
			"elapsed": c.now().Sub(start).String(),
		})
		return &TurnResult{Outcome: models.OutcomeError, Understanding: u, Route: u.Route}
	}
	metrics.TurnsFailed.WithLabelValues(string(stderrors.ErrCodeTurnCancelled)).Inc()
	return &TurnResult{Outcome: models.OutcomeCancelled, Understanding: u, Route: u.Route}
}

func (c *Conversation) finishMCQ(u *models.AgentUnderstanding, prompt *models.MCQPromptData, start time.Time) *TurnResult {
	c.mu.Lock()
	suppress := c.chain.ShouldSuppress()
	c.mu.Unlock()

	if suppress {
		// Two consecutive prompts already; answer with best effort instead
		// of asking again.
		metrics.MCQSuppressed.Inc()
		u.Response = reasoning.FallbackResponse(u)
		u.Phase = models.PhaseComplete
		u.IsComplete = true
		c.log.Info("clarification suppressed by chain-fatigue policy", map[string]interface{}{
			"mcqType": string(prompt.MCQType),
		})
		c.observeCompleted(u, start)
		return &TurnResult{
			Outcome:       models.OutcomeComplete,
			Understanding: u,
			Response:      u.Response,
			Route:         u.Route,
		}
	}

	card := mcq.New(prompt.MCQType, prompt.Question, prompt.Options, c.now())
	metrics.MCQPrompts.WithLabelValues(string(prompt.MCQType)).Inc()
	data := card.Data
	return &TurnResult{
		Outcome:       models.OutcomeSuspended,
		Understanding: u,
		MCQ:           &data,
		Route:         u.Route,
	}
}

func (c *Conversation) finishComplete(ctx context.Context, u *models.AgentUnderstanding, query string, start time.Time) *TurnResult {
	if c.cache != nil && u.Route != nil && u.Route.Path != models.PathCached {
		if err := c.cache.Put(ctx, query, u.Route); err != nil {
			c.log.Warn("route cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	c.observeCompleted(u, start)
	return &TurnResult{
		Outcome:       models.OutcomeComplete,
		Understanding: u,
		Response:      u.Response,
		Route:         u.Route,
	}
}

func (c *Conversation) observeCompleted(u *models.AgentUnderstanding, start time.Time) {
	path, category := "", ""
	if u.Route != nil {
		path = string(u.Route.Path)
		category = string(u.Route.Category)
	}
	metrics.TurnsCompleted.WithLabelValues(path, category).Inc()
	metrics.TurnDuration.WithLabelValues(path).Observe(c.now().Sub(start).Seconds())
}

// commit publishes a finished turn's state, unless a newer turn preempted it.
func (c *Conversation) commit(turnID, query string, result *TurnResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentTurn != turnID {
		// A newer message took over while this turn was draining.
		result.Outcome = models.OutcomeCancelled
		return
	}
	c.cancelTurn = nil

	if result.Understanding != nil {
		c.understanding = result.Understanding
		if result.Route != nil && result.Route.Category != "" {
			c.lastCategory = result.Route.Category
		}
	}

	switch result.Outcome {
	case models.OutcomeSuspended:
		card := mcq.Card{Data: *result.MCQ}
		c.activeCard = &card
		c.pendingQuery = query
		c.chain.RecordPrompt()
		c.messages = append(c.messages, models.Message{
			ID:        uuid.New().String(),
			Role:      models.RoleAssistant,
			Text:      result.MCQ.Question,
			MCQ:       result.MCQ,
			CreatedAt: c.now(),
		})
	case models.OutcomeComplete:
		c.chain.RecordResolvedTurn()
		if result.Response != "" {
			c.messages = append(c.messages, models.Message{
				ID:        uuid.New().String(),
				Role:      models.RoleAssistant,
				Text:      result.Response,
				CreatedAt: c.now(),
			})
		}
	}
}

// matchOption maps user text onto a card option: exact value match first,
// then case-insensitive label match.
func matchOption(card *models.MCQData, text string) (string, bool) {
	for _, o := range card.Options {
		if o.Value == text {
			return o.Value, true
		}
	}
	for _, o := range card.Options {
		if strings.EqualFold(o.Label, text) {
			return o.Value, true
		}
	}
	return "", false
}
