package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatlytics/internal/metrics"
	"chatlytics/internal/models"
	"chatlytics/internal/source"
	"chatlytics/internal/spill"
)

// ErrNoData marks an extraction that finished without spilling a single
// record. The activity layer surfaces it as non-retryable.
var ErrNoData = errors.New("extract produced no records")

// Progress is the heartbeat payload reported to the orchestrator.
type Progress struct {
	Resource  string `json:"resource"`
	Page      int    `json:"page"`
	TotalRows int64  `json:"total_rows"`
}

// globalResources are walked in fixed order before the per-chat sweep.
var globalResources = []struct {
	Name     string
	Endpoint string
}{
	{models.ResourceUsers, "/users"},
	{models.ResourceChats, "/chats"},
	{models.ResourceMessages, "/messages"},
	{models.ResourceMarketplaceItems, "/marketplace"},
	{models.ResourceCategories, "/categories"},
	{models.ResourceSellers, "/sellers"},
}

// Extractor harvests every page of every resource into the spill file.
type Extractor struct {
	client *source.Client
	pages  *source.Paginator
	log    zerolog.Logger

	maxChatSweepChats   int
	heartbeatEveryPages int

	// Heartbeat, when set, is invoked every heartbeatEveryPages pages.
	Heartbeat func(Progress)

	mu           sync.Mutex
	pagesSinceHB int
	chatIDs      []int
	totalPages   int64
	fetchStart   time.Time
}

func NewExtractor(client *source.Client, pages *source.Paginator, maxChatSweepChats, heartbeatEveryPages int, log zerolog.Logger) *Extractor {
	return &Extractor{
		client:              client,
		pages:               pages,
		log:                 log,
		maxChatSweepChats:   maxChatSweepChats,
		heartbeatEveryPages: heartbeatEveryPages,
	}
}

// Run performs the health check, the six global sweeps in fixed order, and
// then the bounded per-chat message sweep, streaming everything into w.
// The caller owns w and must Close it afterwards.
func (e *Extractor) Run(ctx context.Context, w *spill.Writer) error {
	e.fetchStart = time.Now()

	if err := e.client.Health(ctx); err != nil {
		return err
	}

	for _, res := range globalResources {
		if err := e.walkResource(ctx, res.Name, res.Endpoint, w, false); err != nil {
			return err
		}
		e.log.Info().Str("resource", res.Name).Int64("rows", w.Rows()).Msg("resource extracted")
	}

	chatIDs := e.chatIDs
	if len(chatIDs) > e.maxChatSweepChats {
		chatIDs = chatIDs[:e.maxChatSweepChats]
	}
	for _, chatID := range chatIDs {
		endpoint := fmt.Sprintf("/chats/%d/messages", chatID)
		if err := e.walkResource(ctx, models.ResourceChatMessages, endpoint, w, true); err != nil {
			// The global /messages sweep is the authoritative set, so a chat
			// whose first page never materializes is logged and skipped.
			if errors.Is(err, source.ErrFirstPage) {
				e.log.Warn().Err(err).Int("chat_id", chatID).Msg("skipping chat message sweep")
				continue
			}
			return err
		}
	}

	if w.Rows() == 0 {
		return ErrNoData
	}

	e.log.Info().
		Int64("rows", w.Rows()).
		Int64("pages", e.totalPages).
		Dur("elapsed", time.Since(e.fetchStart)).
		Msg("extract complete")
	return nil
}

func (e *Extractor) walkResource(ctx context.Context, resource, endpoint string, w *spill.Writer, lenient bool) error {
	return e.pages.Walk(ctx, endpoint, lenient, func(page int, items []json.RawMessage) error {
		// Walk serializes this callback, but the heartbeat counter is shared
		// across resources, so keep mutation under the extractor lock.
		e.mu.Lock()
		defer e.mu.Unlock()

		for _, item := range items {
			if err := w.Write(resource, item); err != nil {
				return fmt.Errorf("spill %s: %w", resource, err)
			}
			if resource == models.ResourceChats && len(e.chatIDs) < e.maxChatSweepChats {
				var chat models.Chat
				if err := json.Unmarshal(item, &chat); err == nil && chat.ID != 0 {
					e.chatIDs = append(e.chatIDs, chat.ID)
				}
			}
		}
		metrics.PagesFetched.WithLabelValues(resource).Inc()
		metrics.RowsSpilled.Add(float64(len(items)))

		e.totalPages++
		e.pagesSinceHB++
		if e.pagesSinceHB >= e.heartbeatEveryPages {
			e.pagesSinceHB = 0
			if e.Heartbeat != nil {
				e.Heartbeat(Progress{Resource: resource, Page: page, TotalRows: w.Rows()})
			}
		}
		return nil
	})
}
