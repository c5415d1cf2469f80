package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"chatlytics/internal/metrics"
	"chatlytics/internal/models"
	"chatlytics/internal/spill"
)

// privateChatName is the display fallback for chats without a name.
const privateChatName = "Private chat"

var weekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

type userMsgAcc struct {
	count    int
	chatIDs  map[int]struct{}
	lastSent string
}

type chatMsgAcc struct {
	count     int
	senders   map[int]struct{}
	firstSent string
	lastSent  string
}

type dailyAcc struct {
	total   int
	users   map[int]struct{}
	// Per-chat counts instead of private/group tallies: the chat_type lookup
	// happens at finalize, so page order between chats and messages cannot
	// change the result.
	perChat map[int]int
}

type weekdayAcc struct {
	total int
	users map[int]struct{}
	chats map[int]struct{}
}

type sellerAcc struct {
	listed         int
	active         int
	sold           int
	sumListPrice   float64
	countListPrice int
	sumSoldValue   float64
}

type catAcc struct {
	total       int
	active      int
	sold        int
	cancelled   int
	sumPrice    float64
	pricedCount int
}

type chatMktAcc struct {
	total  int
	active int
	sold   int
}

type dailyMktAcc struct {
	listed           int
	sold             int
	sumListedPrice   float64
	countListedPrice int
}

// Aggregator is the single-pass consumer of the raw spill. State is
// O(entities): lookup maps, counters, sets, sum/count pairs, and min/max
// timestamps — never the raw corpus.
//
// All accumulations are commutative, so the interleaved page order produced
// by the concurrent extractor does not affect the output.
type Aggregator struct {
	users map[int]models.User
	chats map[int]models.Chat

	userMsgs map[int]*userMsgAcc
	chatMsgs map[int]*chatMsgAcc
	daily    map[string]*dailyAcc
	hourly   [24]int
	weekday  [7]weekdayAcc
	msgTypes map[string]int

	totalItems     int
	activeItems    int
	soldItems      int
	cancelledItems int
	totalRevenue   float64
	sumPriceAll    float64
	countPriceAll  int

	sellers    map[int]*sellerAcc
	cats       map[int]*catAcc
	catNames   map[int]string
	chatMkt    map[int]*chatMktAcc
	dailyMkt   map[string]*dailyMktAcc
	sellerCats map[int]int

	// seenMsgIDs dedups the overlap between the global /messages sweep and
	// the per-chat sweep: a message counts the first time its id shows up,
	// whichever endpoint delivered it.
	seenMsgIDs map[int64]struct{}

	rows int64
}

func NewAggregator() *Aggregator {
	a := &Aggregator{
		users:      make(map[int]models.User),
		chats:      make(map[int]models.Chat),
		userMsgs:   make(map[int]*userMsgAcc),
		chatMsgs:   make(map[int]*chatMsgAcc),
		daily:      make(map[string]*dailyAcc),
		msgTypes:   make(map[string]int),
		sellers:    make(map[int]*sellerAcc),
		cats:       make(map[int]*catAcc),
		catNames:   make(map[int]string),
		chatMkt:    make(map[int]*chatMktAcc),
		dailyMkt:   make(map[string]*dailyMktAcc),
		sellerCats: make(map[int]int),
		seenMsgIDs: make(map[int64]struct{}),
	}
	for i := range a.weekday {
		a.weekday[i] = weekdayAcc{users: make(map[int]struct{}), chats: make(map[int]struct{})}
	}
	return a
}

// Rows reports how many spill records have been consumed.
func (a *Aggregator) Rows() int64 { return a.rows }

// Consume dispatches one spill record into the aggregate state. Records that
// fail to decode are skipped, matching the lenient spill scan.
func (a *Aggregator) Consume(rec *spill.Record) error {
	a.rows++
	metrics.RowsAggregated.Inc()

	switch rec.Resource {
	case models.ResourceUsers:
		var u models.User
		if err := json.Unmarshal(rec.Data, &u); err != nil || u.ID == 0 {
			return nil
		}
		a.users[u.ID] = u

	case models.ResourceChats:
		var c models.Chat
		if err := json.Unmarshal(rec.Data, &c); err != nil || c.ID == 0 {
			return nil
		}
		a.chats[c.ID] = c

	case models.ResourceMessages:
		var m models.Message
		if err := json.Unmarshal(rec.Data, &m); err != nil {
			return nil
		}
		a.addMessage(m, true)

	case models.ResourceChatMessages:
		var m models.Message
		if err := json.Unmarshal(rec.Data, &m); err != nil {
			return nil
		}
		a.addMessage(m, false)

	case models.ResourceMarketplaceItems:
		var it models.MarketplaceItem
		if err := json.Unmarshal(rec.Data, &it); err != nil {
			return nil
		}
		a.addItem(it)

	case models.ResourceCategories:
		var c models.Category
		if err := json.Unmarshal(rec.Data, &c); err != nil || c.ID == 0 {
			return nil
		}
		a.catNames[c.ID] = c.Name

	case models.ResourceSellers:
		var s models.SellerProfile
		if err := json.Unmarshal(rec.Data, &s); err != nil {
			return nil
		}
		for _, catID := range s.CategoryIDs {
			a.sellerCats[catID]++
		}
	}
	return nil
}

// addMessage feeds one message into every message-dimension aggregator.
// authoritative marks records from the global /messages sweep: those count
// even without an id, while an id-less chat_messages record is dropped
// because the global sweep already covers it.
func (a *Aggregator) addMessage(m models.Message, authoritative bool) {
	if m.ID != nil {
		if _, dup := a.seenMsgIDs[*m.ID]; dup {
			return
		}
		a.seenMsgIDs[*m.ID] = struct{}{}
	} else if !authoritative {
		return
	}

	ua := a.userMsgs[m.SenderID]
	if ua == nil {
		ua = &userMsgAcc{chatIDs: make(map[int]struct{})}
		a.userMsgs[m.SenderID] = ua
	}
	ua.count++
	ua.chatIDs[m.ChatID] = struct{}{}
	if m.SentAt > ua.lastSent {
		ua.lastSent = m.SentAt
	}

	ca := a.chatMsgs[m.ChatID]
	if ca == nil {
		ca = &chatMsgAcc{senders: make(map[int]struct{})}
		a.chatMsgs[m.ChatID] = ca
	}
	ca.count++
	ca.senders[m.SenderID] = struct{}{}
	if ca.firstSent == "" || m.SentAt < ca.firstSent {
		ca.firstSent = m.SentAt
	}
	if m.SentAt > ca.lastSent {
		ca.lastSent = m.SentAt
	}

	if len(m.SentAt) >= 10 {
		date := m.SentAt[:10]
		da := a.daily[date]
		if da == nil {
			da = &dailyAcc{users: make(map[int]struct{}), perChat: make(map[int]int)}
			a.daily[date] = da
		}
		da.total++
		da.users[m.SenderID] = struct{}{}
		da.perChat[m.ChatID]++
	}

	// Hour from fixed ISO-8601 positions, "2006-01-02T15:..."[11:13].
	if len(m.SentAt) >= 13 && isDigit(m.SentAt[11]) && isDigit(m.SentAt[12]) {
		h := int(m.SentAt[11]-'0')*10 + int(m.SentAt[12]-'0')
		if h <= 23 {
			a.hourly[h]++
		}
	}

	if wd, ok := weekdayOf(m.SentAt); ok {
		a.weekday[wd].total++
		a.weekday[wd].users[m.SenderID] = struct{}{}
		a.weekday[wd].chats[m.ChatID] = struct{}{}
	}

	msgType := "text"
	if m.MessageType != nil && *m.MessageType != "" {
		msgType = *m.MessageType
	}
	a.msgTypes[msgType]++
}

func (a *Aggregator) addItem(it models.MarketplaceItem) {
	a.totalItems++
	price := 0.0
	hasPrice := it.Price != nil
	if hasPrice {
		price = *it.Price
	}

	switch it.Status {
	case "active":
		a.activeItems++
	case "sold":
		a.soldItems++
		a.totalRevenue += price
	case "cancelled":
		a.cancelledItems++
	}
	if hasPrice {
		a.sumPriceAll += price
		a.countPriceAll++
	}

	if it.SellerID != nil {
		sa := a.sellers[*it.SellerID]
		if sa == nil {
			sa = &sellerAcc{}
			a.sellers[*it.SellerID] = sa
		}
		sa.listed++
		switch it.Status {
		case "active":
			sa.active++
		case "sold":
			sa.sold++
			sa.sumSoldValue += price
		}
		if hasPrice {
			sa.sumListPrice += price
			sa.countListPrice++
		}
	}

	// Uncategorized items stay out of category_statistics entirely.
	if it.CategoryID != nil {
		ct := a.cats[*it.CategoryID]
		if ct == nil {
			ct = &catAcc{}
			a.cats[*it.CategoryID] = ct
		}
		ct.total++
		switch it.Status {
		case "active":
			ct.active++
		case "sold":
			ct.sold++
		case "cancelled":
			ct.cancelled++
		}
		if hasPrice {
			ct.sumPrice += price
			ct.pricedCount++
		}
	}

	if it.ChatID != nil {
		cm := a.chatMkt[*it.ChatID]
		if cm == nil {
			cm = &chatMktAcc{}
			a.chatMkt[*it.ChatID] = cm
		}
		cm.total++
		switch it.Status {
		case "active":
			cm.active++
		case "sold":
			cm.sold++
		}
	}

	if len(it.CreatedAt) >= 10 {
		dm := a.dailyMktFor(it.CreatedAt[:10])
		dm.listed++
		if hasPrice {
			dm.sumListedPrice += price
			dm.countListedPrice++
		}
	}
	if it.SoldAt != nil && len(*it.SoldAt) >= 10 {
		a.dailyMktFor((*it.SoldAt)[:10]).sold++
	}
}

func (a *Aggregator) dailyMktFor(date string) *dailyMktAcc {
	dm := a.dailyMkt[date]
	if dm == nil {
		dm = &dailyMktAcc{}
		a.dailyMkt[date] = dm
	}
	return dm
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// weekdayOf derives 0=Mon..6=Sun from an RFC-3339 timestamp.
func weekdayOf(ts string) (int, bool) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return 0, false
	}
	return (int(t.Weekday()) + 6) % 7, true
}

// round2 rounds half-even to 2 decimal places, matching the NUMERIC(…,2)
// storage columns.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

func (a *Aggregator) usernameFor(userID int) string {
	if u, ok := a.users[userID]; ok {
		return u.Username
	}
	return fmt.Sprintf("user %d", userID)
}

func (a *Aggregator) chatNameFor(chatID int) string {
	if c, ok := a.chats[chatID]; ok && c.Name != nil && *c.Name != "" {
		return *c.Name
	}
	return privateChatName
}
