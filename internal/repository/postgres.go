package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"chatlytics/internal/metrics"
	"chatlytics/internal/models"
)

// Batch sizes for the upsert pipeline. Small dimension tables (hours,
// weekdays, message types, top sellers) go in smaller batches.
const (
	batchSize      = 1000
	smallBatchSize = 100
)

// Repository owns the analytics schema and performs the batched idempotent
// upserts. One loader invocation uses a single transaction; replays after a
// retry are safe because every write is keyed on a natural PK.
type Repository struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func NewRepository(ctx context.Context, dsn string, log zerolog.Logger) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse analytics dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect analytics db: %w", err)
	}
	return &Repository{db: pool, log: log}, nil
}

func (r *Repository) Close() {
	r.db.Close()
}

// EnsureSchema creates every analytics table if missing, in one transaction.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// LoadAll upserts every aggregate table inside a single transaction.
// marketplace_statistics is append-only: one fresh snapshot row per run.
func (r *Repository) LoadAll(ctx context.Context, data *models.TransformedData) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin load tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = upsertBatch(ctx, tx, "user_statistics", `
		INSERT INTO user_statistics
		(user_id, username, total_messages_sent, chats_participated,
		 last_message_date, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
		  username = EXCLUDED.username,
		  total_messages_sent = EXCLUDED.total_messages_sent,
		  chats_participated = EXCLUDED.chats_participated,
		  last_message_date = EXCLUDED.last_message_date,
		  is_active = EXCLUDED.is_active,
		  created_at = EXCLUDED.created_at`,
		data.UserStatistics, batchSize,
		func(s models.UserStatistics) (int, []any) {
			return s.UserID, []any{s.UserID, s.Username, s.TotalMessagesSent, s.ChatsParticipated,
				s.LastMessageDate, s.IsActive, s.CreatedAt}
		})
	if err != nil {
		return err
	}

	err = upsertBatch(ctx, tx, "chat_statistics", `
		INSERT INTO chat_statistics
		(chat_id, chat_name, chat_type, total_messages, unique_senders,
		 first_message_date, last_message_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (chat_id) DO UPDATE SET
		  chat_name = EXCLUDED.chat_name,
		  chat_type = EXCLUDED.chat_type,
		  total_messages = EXCLUDED.total_messages,
		  unique_senders = EXCLUDED.unique_senders,
		  first_message_date = EXCLUDED.first_message_date,
		  last_message_date = EXCLUDED.last_message_date,
		  created_at = EXCLUDED.created_at`,
		data.ChatStatistics, batchSize,
		func(s models.ChatStatistics) (int, []any) {
			return s.ChatID, []any{s.ChatID, s.ChatName, s.ChatType, s.TotalMessages, s.UniqueSenders,
				s.FirstMessageDate, s.LastMessageDate, s.CreatedAt}
		})
	if err != nil {
		return err
	}

	err = upsertBatch(ctx, tx, "daily_message_stats", `
		INSERT INTO daily_message_stats
		(date, total_messages, unique_users, unique_chats, private_messages, group_messages)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (date) DO UPDATE SET
		  total_messages = EXCLUDED.total_messages,
		  unique_users = EXCLUDED.unique_users,
		  unique_chats = EXCLUDED.unique_chats,
		  private_messages = EXCLUDED.private_messages,
		  group_messages = EXCLUDED.group_messages`,
		data.DailyMessageStats, batchSize,
		func(s models.DailyMessageStats) (int, []any) {
			return 1, []any{s.Date, s.TotalMessages, s.UniqueUsers, s.UniqueChats,
				s.PrivateMessages, s.GroupMessages}
		})
	if err != nil {
		return err
	}

	err = upsertBatch(ctx, tx, "hourly_message_stats", `
		INSERT INTO hourly_message_stats (hour, total_messages)
		VALUES ($1, $2)
		ON CONFLICT (hour) DO UPDATE SET
		  total_messages = EXCLUDED.total_messages`,
		data.HourlyMessageStats, smallBatchSize,
		func(s models.HourlyMessageStats) (int, []any) {
			return 1, []any{s.Hour, s.TotalMessages}
		})
	if err != nil {
		return err
	}

	err = upsertBatch(ctx, tx, "weekday_message_stats", `
		INSERT INTO weekday_message_stats
		(weekday, weekday_name, total_messages, unique_users, unique_chats)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (weekday) DO UPDATE SET
		  weekday_name = EXCLUDED.weekday_name,
		  total_messages = EXCLUDED.total_messages,
		  unique_users = EXCLUDED.unique_users,
		  unique_chats = EXCLUDED.unique_chats`,
		data.WeekdayMessageStats, smallBatchSize,
		func(s models.WeekdayMessageStats) (int, []any) {
			return 1, []any{s.Weekday, s.WeekdayName, s.TotalMessages, s.UniqueUsers, s.UniqueChats}
		})
	if err != nil {
		return err
	}

	err = upsertBatch(ctx, tx, "message_type_summary", `
		INSERT INTO message_type_summary (message_type, total_count)
		VALUES ($1, $2)
		ON CONFLICT (message_type) DO UPDATE SET
		  total_count = EXCLUDED.total_count`,
		data.MessageTypeSummary, smallBatchSize,
		func(s models.MessageTypeSummary) (int, []any) {
			return 1, []any{s.MessageType, s.TotalCount}
		})
	if err != nil {
		return err
	}

	mkt := data.MarketplaceStatistics
	if _, err := tx.Exec(ctx, `
		INSERT INTO marketplace_statistics
		(total_items, active_items, sold_items, cancelled_items, total_revenue, average_price)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		mkt.TotalItems, mkt.ActiveItems, mkt.SoldItems, mkt.CancelledItems,
		mkt.TotalRevenue, mkt.AveragePrice,
	); err != nil {
		return fmt.Errorf("insert marketplace_statistics: %w", err)
	}
	metrics.RowsUpserted.WithLabelValues("marketplace_statistics").Inc()

	err = upsertBatch(ctx, tx, "top_sellers", `
		INSERT INTO top_sellers (seller_id, username, items_sold, total_revenue)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (seller_id) DO UPDATE SET
		  username = EXCLUDED.username,
		  items_sold = EXCLUDED.items_sold,
		  total_revenue = EXCLUDED.total_revenue`,
		mkt.TopSellers, smallBatchSize,
		func(s models.TopSeller) (int, []any) {
			return s.SellerID, []any{s.SellerID, s.Username, s.ItemsSold, s.TotalRevenue}
		})
	if err != nil {
		return err
	}

	err = upsertBatch(ctx, tx, "category_statistics", `
		INSERT INTO category_statistics
		(category_id, category_name, total_items, active_items, sold_items, cancelled_items, avg_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (category_id) DO UPDATE SET
		  category_name = EXCLUDED.category_name,
		  total_items = EXCLUDED.total_items,
		  active_items = EXCLUDED.active_items,
		  sold_items = EXCLUDED.sold_items,
		  cancelled_items = EXCLUDED.cancelled_items,
		  avg_price = EXCLUDED.avg_price`,
		data.CategoryStatistics, batchSize,
		func(s models.CategoryStatistics) (int, []any) {
			return s.CategoryID, []any{s.CategoryID, s.CategoryName, s.TotalItems, s.ActiveItems,
				s.SoldItems, s.CancelledItems, s.AvgPrice}
		})
	if err != nil {
		return err
	}

	err = upsertBatch(ctx, tx, "seller_statistics", `
		INSERT INTO seller_statistics
		(seller_id, username, total_items_listed, active_items, sold_items,
		 avg_listing_price, total_listed_value, total_sold_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (seller_id) DO UPDATE SET
		  username = EXCLUDED.username,
		  total_items_listed = EXCLUDED.total_items_listed,
		  active_items = EXCLUDED.active_items,
		  sold_items = EXCLUDED.sold_items,
		  avg_listing_price = EXCLUDED.avg_listing_price,
		  total_listed_value = EXCLUDED.total_listed_value,
		  total_sold_value = EXCLUDED.total_sold_value`,
		data.SellerStatistics, batchSize,
		func(s models.SellerStatistics) (int, []any) {
			return s.SellerID, []any{s.SellerID, s.Username, s.TotalItemsListed, s.ActiveItems,
				s.SoldItems, s.AvgListingPrice, s.TotalListedValue, s.TotalSoldValue}
		})
	if err != nil {
		return err
	}

	err = upsertBatch(ctx, tx, "chat_marketplace_stats", `
		INSERT INTO chat_marketplace_stats (chat_id, chat_name, total_items, active_items, sold_items)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chat_id) DO UPDATE SET
		  chat_name = EXCLUDED.chat_name,
		  total_items = EXCLUDED.total_items,
		  active_items = EXCLUDED.active_items,
		  sold_items = EXCLUDED.sold_items`,
		data.ChatMarketplaceStats, batchSize,
		func(s models.ChatMarketplaceStats) (int, []any) {
			return s.ChatID, []any{s.ChatID, s.ChatName, s.TotalItems, s.ActiveItems, s.SoldItems}
		})
	if err != nil {
		return err
	}

	err = upsertBatch(ctx, tx, "daily_marketplace_stats", `
		INSERT INTO daily_marketplace_stats (date, items_listed, items_sold, avg_listing_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date) DO UPDATE SET
		  items_listed = EXCLUDED.items_listed,
		  items_sold = EXCLUDED.items_sold,
		  avg_listing_price = EXCLUDED.avg_listing_price`,
		data.DailyMarketplaceStats, batchSize,
		func(s models.DailyMarketplaceStats) (int, []any) {
			return 1, []any{s.Date, s.ItemsListed, s.ItemsSold, s.AvgListingPrice}
		})
	if err != nil {
		return err
	}

	err = upsertBatch(ctx, tx, "seller_category_stats", `
		INSERT INTO seller_category_stats (category_id, category_name, sellers_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (category_id) DO UPDATE SET
		  category_name = EXCLUDED.category_name,
		  sellers_count = EXCLUDED.sellers_count`,
		data.SellerCategoryStats, batchSize,
		func(s models.SellerCategoryStats) (int, []any) {
			return s.CategoryID, []any{s.CategoryID, s.CategoryName, s.SellersCount}
		})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit load tx: %w", err)
	}
	r.log.Info().Int("rows", data.RowCount()).Msg("analytics tables upserted")
	return nil
}

// RecordRun appends the etl_runs audit row. Called only after LoadAll has
// committed, so a failed run leaves no success row behind.
func (r *Repository) RecordRun(ctx context.Context, startedAt, finishedAt time.Time, status, notes string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO etl_runs (started_at, finished_at, status, notes) VALUES ($1, $2, $3, $4)`,
		startedAt.UTC(), finishedAt.UTC(), status, notes,
	)
	if err != nil {
		return fmt.Errorf("record etl run: %w", err)
	}
	return nil
}

// upsertBatch sends rows in batches over the open transaction. The args
// callback also reports the row's integer PK; rows with a zero PK are
// filtered out so a null-keyed aggregate (e.g. an uncategorized bucket that
// slipped into an old transform file) can never be inserted. Tables with
// non-integer PKs return a constant positive key.
func upsertBatch[T any](ctx context.Context, tx pgx.Tx, table, sql string, rows []T, size int, args func(T) (int, []any)) error {
	kept := make([][]any, 0, len(rows))
	for _, row := range rows {
		pk, vals := args(row)
		if pk == 0 {
			continue
		}
		kept = append(kept, vals)
	}

	for start := 0; start < len(kept); start += size {
		end := min(start+size, len(kept))
		b := &pgx.Batch{}
		for _, vals := range kept[start:end] {
			b.Queue(sql, vals...)
		}
		br := tx.SendBatch(ctx, b)
		for i := start; i < end; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("upsert %s: %w", table, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("flush %s batch: %w", table, err)
		}
		metrics.RowsUpserted.WithLabelValues(table).Add(float64(end - start))
	}
	return nil
}
