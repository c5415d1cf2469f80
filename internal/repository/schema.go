package repository

// Analytics DDL. Every statement is idempotent; EnsureSchema runs them in a
// single transaction at loader start. Read-optimized denormalized tables:
// integer natural PKs, NUMERIC(10,2) money for listing-level values,
// NUMERIC(12,2) for cumulative ones, and an updated_at audit column.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS user_statistics (
		user_id INTEGER PRIMARY KEY,
		username VARCHAR(50),
		total_messages_sent INTEGER DEFAULT 0,
		chats_participated INTEGER DEFAULT 0,
		last_message_date TIMESTAMP,
		is_active BOOLEAN,
		created_at TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS chat_statistics (
		chat_id INTEGER PRIMARY KEY,
		chat_name VARCHAR(100),
		chat_type VARCHAR(20),
		total_messages INTEGER DEFAULT 0,
		unique_senders INTEGER DEFAULT 0,
		first_message_date TIMESTAMP,
		last_message_date TIMESTAMP,
		created_at TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS daily_message_stats (
		date DATE PRIMARY KEY,
		total_messages INTEGER DEFAULT 0,
		unique_users INTEGER DEFAULT 0,
		unique_chats INTEGER DEFAULT 0,
		private_messages INTEGER DEFAULT 0,
		group_messages INTEGER DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS hourly_message_stats (
		hour SMALLINT PRIMARY KEY,
		total_messages INTEGER DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS weekday_message_stats (
		weekday SMALLINT PRIMARY KEY, -- 0=Mon .. 6=Sun
		weekday_name VARCHAR(10),
		total_messages INTEGER DEFAULT 0,
		unique_users INTEGER DEFAULT 0,
		unique_chats INTEGER DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS message_type_summary (
		message_type VARCHAR(20) PRIMARY KEY,
		total_count INTEGER DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS marketplace_statistics (
		id SERIAL PRIMARY KEY,
		total_items INTEGER DEFAULT 0,
		active_items INTEGER DEFAULT 0,
		sold_items INTEGER DEFAULT 0,
		cancelled_items INTEGER DEFAULT 0,
		total_revenue NUMERIC(12, 2) DEFAULT 0,
		average_price NUMERIC(10, 2) DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS top_sellers (
		seller_id INTEGER PRIMARY KEY,
		username VARCHAR(50),
		items_sold INTEGER DEFAULT 0,
		total_revenue NUMERIC(12, 2) DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS category_statistics (
		category_id INTEGER PRIMARY KEY,
		category_name VARCHAR(100),
		total_items INTEGER DEFAULT 0,
		active_items INTEGER DEFAULT 0,
		sold_items INTEGER DEFAULT 0,
		cancelled_items INTEGER DEFAULT 0,
		avg_price NUMERIC(10, 2) DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS seller_statistics (
		seller_id INTEGER PRIMARY KEY,
		username VARCHAR(50),
		total_items_listed INTEGER DEFAULT 0,
		active_items INTEGER DEFAULT 0,
		sold_items INTEGER DEFAULT 0,
		avg_listing_price NUMERIC(10, 2) DEFAULT 0,
		total_listed_value NUMERIC(12, 2) DEFAULT 0,
		total_sold_value NUMERIC(12, 2) DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS chat_marketplace_stats (
		chat_id INTEGER PRIMARY KEY,
		chat_name VARCHAR(100),
		total_items INTEGER DEFAULT 0,
		active_items INTEGER DEFAULT 0,
		sold_items INTEGER DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS daily_marketplace_stats (
		date DATE PRIMARY KEY,
		items_listed INTEGER DEFAULT 0,
		items_sold INTEGER DEFAULT 0,
		avg_listing_price NUMERIC(10, 2) DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS seller_category_stats (
		category_id INTEGER PRIMARY KEY,
		category_name VARCHAR(100),
		sellers_count INTEGER DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS etl_runs (
		id SERIAL PRIMARY KEY,
		started_at TIMESTAMP,
		finished_at TIMESTAMP,
		status VARCHAR(20),
		notes TEXT
	)`,
}
