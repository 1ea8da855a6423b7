package schema

// UserType classifies the organisation behind an account.
type UserType string

const (
	UserAcademic  UserType = "Academic"
	UserCorporate UserType = "Corporate"
	UserStartup   UserType = "Startup"
)

// SubscriptionTier is the plan an account is on.
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "Free"
	TierStartup    SubscriptionTier = "Startup"
	TierEnterprise SubscriptionTier = "Enterprise"
)

// PurchaseRecord is the immutable receipt of a single purchase.
type PurchaseRecord struct {
	ListingID string `json:"listing_id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	Price     int64  `json:"price"`
}

// Account is the session-scoped profile of the current user.
// PurchaseHistory is kept newest first.
type Account struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	UserType        UserType         `json:"user_type"`
	Tier            SubscriptionTier `json:"subscription_tier"`
	Credits         int64            `json:"credits"`
	PurchaseHistory []PurchaseRecord `json:"purchase_history"`
	Uploads         []Listing        `json:"uploaded_experiments"`
}

// Clone returns a deep copy of a.
func (a Account) Clone() Account {
	out := a
	if a.PurchaseHistory != nil {
		out.PurchaseHistory = append(make([]PurchaseRecord, 0, len(a.PurchaseHistory)), a.PurchaseHistory...)
	}
	if a.Uploads != nil {
		out.Uploads = make([]Listing, len(a.Uploads))
		for i, l := range a.Uploads {
			out.Uploads[i] = l.Clone()
		}
	}
	return out
}

// AccountSummary holds the dashboard counters for an account.
type AccountSummary struct {
	AccountID  string `json:"account_id"`
	Balance    int64  `json:"balance"`
	Purchases  int    `json:"purchases"`
	Uploads    int    `json:"uploads"`
	TotalSpent int64  `json:"total_spent"`
}

// Summarize computes the dashboard counters for a.
func (a Account) Summarize() AccountSummary {
	s := AccountSummary{
		AccountID: a.ID,
		Balance:   a.Credits,
		Purchases: len(a.PurchaseHistory),
		Uploads:   len(a.Uploads),
	}
	for _, r := range a.PurchaseHistory {
		s.TotalSpent += r.Price
	}
	return s
}

// UploadDraft is what a seller submits from the upload form.
// Nothing in the engine validates it.
type UploadDraft struct {
	Title     string       `json:"title"`
	Category  Category     `json:"category"`
	Stage     FailureStage `json:"stage"`
	Summary   string       `json:"summary"`
	Price     int64        `json:"price"`
	Anonymize bool         `json:"anonymize"`
}

// PurchaseResult is the state after a successful purchase.
type PurchaseResult struct {
	Account Account        `json:"account"`
	Listing Listing        `json:"listing"`
	Record  PurchaseRecord `json:"record"`
}

// View names a screen of the marketplace front end.
type View string

const (
	ViewLanding     View = "landing"
	ViewMarketplace View = "marketplace"
	ViewUpload      View = "upload"
	ViewDashboard   View = "dashboard"
	ViewDocs        View = "docs"
)

// UploadOutcome is the state after an upload finished processing.
type UploadOutcome struct {
	Account  Account `json:"account"`
	Listing  Listing `json:"listing"`
	NextView View    `json:"next_view"`
}
