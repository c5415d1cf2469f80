package models

// Raw records as they come off the source API. The extractor spills items as
// opaque JSON; only the transformer decodes them, and only the fields the
// aggregations depend on. Unknown fields are ignored.

type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

type Chat struct {
	ID        int     `json:"id"`
	Name      *string `json:"name"`
	ChatType  string  `json:"chat_type"`
	CreatedAt string  `json:"created_at"`
}

// Message is the shape of both /messages items and /chats/{id}/messages
// items. Timestamps stay as ISO-8601 strings; string comparison orders them.
type Message struct {
	ID          *int64  `json:"id"`
	SenderID    int     `json:"sender_id"`
	ChatID      int     `json:"chat_id"`
	SentAt      string  `json:"sent_at"`
	MessageType *string `json:"message_type"`
}

type MarketplaceItem struct {
	SellerID   *int     `json:"seller_id"`
	ChatID     *int     `json:"chat_id"`
	CategoryID *int     `json:"category_id"`
	Price      *float64 `json:"price"`
	Status     string   `json:"status"`
	CreatedAt  string   `json:"created_at"`
	SoldAt     *string  `json:"sold_at"`
}

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type SellerProfile struct {
	UserID      int   `json:"user_id"`
	CategoryIDs []int `json:"category_ids"`
}

// Resource kinds tagged onto spill records.
const (
	ResourceUsers            = "users"
	ResourceChats            = "chats"
	ResourceMessages         = "messages"
	ResourceMarketplaceItems = "marketplace_items"
	ResourceCategories       = "categories"
	ResourceSellers          = "sellers"
	ResourceChatMessages     = "chat_messages"
)
