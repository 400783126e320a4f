// internal/store/phraseindex.go
package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blevesearch/bleve/v2"

	"finchat-engine/internal/common/config"
	stderrors "finchat-engine/internal/common/errors"
	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/models"
)

// placeholderPattern matches {{entityName}} slots inside training phrases.
var placeholderPattern = regexp.MustCompile(`\{\{[^}]*\}\}`)

// phraseDoc is one indexed training phrase. Each phrase is its own document
// so the best-matching phrase, not the whole intent, decides the hit.
type phraseDoc struct {
	IntentID   string `json:"intent_id"`
	IntentName string `json:"intent_name"`
	Phrase     string `json:"phrase"`
}

// PhraseIndex is the embedded full-text index over training phrases that
// backs the fast routing path. Match confidence is computed from token
// overlap against the stored phrase, not from the raw search score, so it
// is stable across index rebuilds.
type PhraseIndex struct {
	index         bleve.Index
	minConfidence float64
	logger        logger.Logger
}

// NewPhraseIndex opens (or creates) the index at cfg.Path. An empty path
// selects a memory-only index, which is what tests and the simulator use.
func NewPhraseIndex(cfg config.IndexConfig, log logger.Logger) (*PhraseIndex, error) {
	mapping := bleve.NewIndexMapping()

	var (
		index bleve.Index
		err   error
	)
	if cfg.Path == "" {
		index, err = bleve.NewMemOnly(mapping)
	} else {
		index, err = bleve.Open(cfg.Path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			index, err = bleve.New(cfg.Path, mapping)
		}
	}
	if err != nil {
		return nil, stderrors.NewIndexFailedError("", err)
	}

	return &PhraseIndex{
		index:         index,
		minConfidence: cfg.MinConfidence,
		logger:        log,
	}, nil
}

// Close releases the underlying index.
func (p *PhraseIndex) Close() error {
	return p.index.Close()
}

// IndexIntent (re)indexes every training phrase of an intent. Entity
// placeholders are stripped before indexing; a phrase that is nothing but
// placeholders is skipped.
func (p *PhraseIndex) IndexIntent(intent *models.Intent) error {
	if err := p.RemoveIntent(intent.ID); err != nil {
		return err
	}

	batch := p.index.NewBatch()
	for i, phrase := range intent.TrainingPhrases {
		cleaned := strings.TrimSpace(placeholderPattern.ReplaceAllString(phrase, " "))
		if cleaned == "" {
			continue
		}
		doc := phraseDoc{
			IntentID:   intent.ID,
			IntentName: intent.Name,
			Phrase:     cleaned,
		}
		if err := batch.Index(phraseDocID(intent.ID, i), doc); err != nil {
			return stderrors.NewIndexFailedError(intent.ID, err)
		}
	}
	if err := p.index.Batch(batch); err != nil {
		return stderrors.NewIndexFailedError(intent.ID, err)
	}

	p.logger.Debug("intent phrases indexed", map[string]interface{}{
		"intentId": intent.ID,
		"phrases":  len(intent.TrainingPhrases),
	})
	return nil
}

// RemoveIntent drops all phrase documents of an intent.
func (p *PhraseIndex) RemoveIntent(intentID string) error {
	query := bleve.NewTermQuery(intentID)
	query.SetField("intent_id")
	req := bleve.NewSearchRequest(query)
	req.Size = 1000

	res, err := p.index.Search(req)
	if err != nil {
		return stderrors.NewIndexFailedError(intentID, err)
	}

	batch := p.index.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	if err := p.index.Batch(batch); err != nil {
		return stderrors.NewIndexFailedError(intentID, err)
	}
	return nil
}

// PhraseMatch is a fast-path hit against the phrase index.
type PhraseMatch struct {
	IntentID string
	Intent   models.IntentRef
	Phrase   string
}

// Match finds the intent whose training phrase best matches the query. It
// returns nil when nothing clears the confidence floor; the caller then
// falls back to the reasoning service.
func (p *PhraseIndex) Match(query string) (*PhraseMatch, error) {
	match := bleve.NewMatchQuery(query)
	match.SetField("phrase")
	req := bleve.NewSearchRequest(match)
	req.Size = 5
	req.Fields = []string{"intent_id", "intent_name", "phrase"}

	res, err := p.index.Search(req)
	if err != nil {
		return nil, stderrors.NewIndexFailedError("", err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}

	// Re-rank the candidates by token overlap so confidence doesn't drift
	// with corpus statistics.
	var best *PhraseMatch
	for _, hit := range res.Hits {
		phrase, _ := hit.Fields["phrase"].(string)
		id, _ := hit.Fields["intent_id"].(string)
		name, _ := hit.Fields["intent_name"].(string)
		confidence := tokenOverlap(query, phrase)
		if best == nil || confidence > best.Intent.Confidence {
			best = &PhraseMatch{
				IntentID: id,
				Intent:   models.IntentRef{Name: name, Confidence: confidence},
				Phrase:   phrase,
			}
		}
	}

	if best == nil || best.Intent.Confidence < p.minConfidence {
		return nil, nil
	}
	return best, nil
}

// tokenOverlap scores two texts as shared tokens over the larger token set.
func tokenOverlap(a, b string) float64 {
	aTokens := strings.Fields(strings.ToLower(a))
	bTokens := strings.Fields(strings.ToLower(b))
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}

	seen := make(map[string]bool, len(bTokens))
	for _, t := range bTokens {
		seen[t] = true
	}
	shared := 0
	for _, t := range aTokens {
		if seen[t] {
			shared++
			seen[t] = false
		}
	}

	max := len(aTokens)
	if len(bTokens) > max {
		max = len(bTokens)
	}
	return float64(shared) / float64(max)
}

func phraseDocID(intentID string, i int) string {
	return fmt.Sprintf("%s|%d", intentID, i)
}
