package models

// Aggregate rows produced by the transformer and upserted by the loader.
// JSON tags double as the transformed-spill format, so the loader can decode
// a transform output written by any previous run.

type UserStatistics struct {
	UserID            int     `json:"user_id"`
	Username          string  `json:"username"`
	TotalMessagesSent int     `json:"total_messages_sent"`
	ChatsParticipated int     `json:"chats_participated"`
	LastMessageDate   *string `json:"last_message_date"`
	IsActive          bool    `json:"is_active"`
	CreatedAt         string  `json:"created_at"`
}

type ChatStatistics struct {
	ChatID           int     `json:"chat_id"`
	ChatName         string  `json:"chat_name"`
	ChatType         string  `json:"chat_type"`
	TotalMessages    int     `json:"total_messages"`
	UniqueSenders    int     `json:"unique_senders"`
	FirstMessageDate *string `json:"first_message_date"`
	LastMessageDate  *string `json:"last_message_date"`
	CreatedAt        string  `json:"created_at"`
}

type DailyMessageStats struct {
	Date            string `json:"date"`
	TotalMessages   int    `json:"total_messages"`
	UniqueUsers     int    `json:"unique_users"`
	UniqueChats     int    `json:"unique_chats"`
	PrivateMessages int    `json:"private_messages"`
	GroupMessages   int    `json:"group_messages"`
}

type HourlyMessageStats struct {
	Hour          int `json:"hour"`
	TotalMessages int `json:"total_messages"`
}

type WeekdayMessageStats struct {
	Weekday       int    `json:"weekday"`
	WeekdayName   string `json:"weekday_name"`
	TotalMessages int    `json:"total_messages"`
	UniqueUsers   int    `json:"unique_users"`
	UniqueChats   int    `json:"unique_chats"`
}

type MessageTypeSummary struct {
	MessageType string `json:"message_type"`
	TotalCount  int    `json:"total_count"`
}

type TopSeller struct {
	SellerID     int     `json:"seller_id"`
	Username     string  `json:"username"`
	ItemsSold    int     `json:"items_sold"`
	TotalRevenue float64 `json:"total_revenue"`
}

// MarketplaceStatistics is a single whole-marketplace snapshot; the loader
// appends one row per run rather than upserting.
type MarketplaceStatistics struct {
	TotalItems     int         `json:"total_items"`
	ActiveItems    int         `json:"active_items"`
	SoldItems      int         `json:"sold_items"`
	CancelledItems int         `json:"cancelled_items"`
	TotalRevenue   float64     `json:"total_revenue"`
	AveragePrice   float64     `json:"average_price"`
	TopSellers     []TopSeller `json:"top_sellers"`
}

type CategoryStatistics struct {
	CategoryID     int     `json:"category_id"`
	CategoryName   string  `json:"category_name"`
	TotalItems     int     `json:"total_items"`
	ActiveItems    int     `json:"active_items"`
	SoldItems      int     `json:"sold_items"`
	CancelledItems int     `json:"cancelled_items"`
	AvgPrice       float64 `json:"avg_price"`
}

type SellerStatistics struct {
	SellerID         int     `json:"seller_id"`
	Username         string  `json:"username"`
	TotalItemsListed int     `json:"total_items_listed"`
	ActiveItems      int     `json:"active_items"`
	SoldItems        int     `json:"sold_items"`
	AvgListingPrice  float64 `json:"avg_listing_price"`
	TotalListedValue float64 `json:"total_listed_value"`
	TotalSoldValue   float64 `json:"total_sold_value"`
}

type ChatMarketplaceStats struct {
	ChatID      int    `json:"chat_id"`
	ChatName    string `json:"chat_name"`
	TotalItems  int    `json:"total_items"`
	ActiveItems int    `json:"active_items"`
	SoldItems   int    `json:"sold_items"`
}

type DailyMarketplaceStats struct {
	Date            string  `json:"date"`
	ItemsListed     int     `json:"items_listed"`
	ItemsSold       int     `json:"items_sold"`
	AvgListingPrice float64 `json:"avg_listing_price"`
}

type SellerCategoryStats struct {
	CategoryID   int    `json:"category_id"`
	CategoryName string `json:"category_name"`
	SellersCount int    `json:"sellers_count"`
}

// TransformedData is the transform activity's output document.
type TransformedData struct {
	UserStatistics        []UserStatistics        `json:"user_statistics"`
	ChatStatistics        []ChatStatistics        `json:"chat_statistics"`
	DailyMessageStats     []DailyMessageStats     `json:"daily_message_stats"`
	HourlyMessageStats    []HourlyMessageStats    `json:"hourly_message_stats"`
	WeekdayMessageStats   []WeekdayMessageStats   `json:"weekday_message_stats"`
	MessageTypeSummary    []MessageTypeSummary    `json:"message_type_summary"`
	MarketplaceStatistics MarketplaceStatistics   `json:"marketplace_statistics"`
	CategoryStatistics    []CategoryStatistics    `json:"category_statistics"`
	SellerStatistics      []SellerStatistics      `json:"seller_statistics"`
	ChatMarketplaceStats  []ChatMarketplaceStats  `json:"chat_marketplace_stats"`
	DailyMarketplaceStats []DailyMarketplaceStats `json:"daily_marketplace_stats"`
	SellerCategoryStats   []SellerCategoryStats   `json:"seller_category_stats"`
}

// RowCount is the number of aggregate rows the loader will write, the
// marketplace snapshot row included.
func (d *TransformedData) RowCount() int {
	return len(d.UserStatistics) + len(d.ChatStatistics) + len(d.DailyMessageStats) +
		len(d.HourlyMessageStats) + len(d.WeekdayMessageStats) + len(d.MessageTypeSummary) +
		1 + len(d.MarketplaceStatistics.TopSellers) +
		len(d.CategoryStatistics) + len(d.SellerStatistics) + len(d.ChatMarketplaceStats) +
		len(d.DailyMarketplaceStats) + len(d.SellerCategoryStats)
}
