package engine

import "github.com/celerix-dev/negmarket/pkg/schema"

// Placeholders for listings created by an upload before review fills them in.
const (
	pendingTitle = "Pending Review Experiment"
	pendingNote  = "Data verification in progress"
)

// ApplyPurchase debits account by listing's price, prepends a receipt dated
// date to the history and counts one more download on listing. It returns
// new values; account and listing are not modified.
//
// When the balance does not cover the price an *InsufficientCreditsError is
// returned together with the unchanged inputs.
func ApplyPurchase(account schema.Account, listing schema.Listing, date string) (schema.Account, schema.Listing, schema.PurchaseRecord, error) {
	if account.Credits < listing.Price {
		return account, listing, schema.PurchaseRecord{}, &InsufficientCreditsError{
			ListingID: listing.ID,
			Balance:   account.Credits,
			Price:     listing.Price,
		}
	}

	record := schema.PurchaseRecord{
		ListingID: listing.ID,
		Title:     listing.Title,
		Date:      date,
		Price:     listing.Price,
	}

	next := account.Clone()
	next.Credits -= listing.Price
	next.PurchaseHistory = append([]schema.PurchaseRecord{record}, account.PurchaseHistory...)

	bought := listing.Clone()
	bought.Downloads++

	return next, bought, record, nil
}

// ApplyUpload appends a pending listing built from draft to the account's
// uploads. It cannot fail.
func ApplyUpload(account schema.Account, draft schema.UploadDraft, id, date string) (schema.Account, schema.Listing) {
	listing := PendingListing(draft, id, date)

	next := account.Clone()
	next.Uploads = append(next.Uploads, listing.Clone())
	return next, listing
}

// PendingListing synthesises the placeholder listing for a fresh upload. It
// is unpriced, undownloaded and waits for review.
func PendingListing(draft schema.UploadDraft, id, date string) schema.Listing {
	l := schema.Listing{
		ID:             id,
		Title:          pendingTitle,
		Category:       schema.CategoryOther,
		TargetClass:    "Unknown",
		FailureStage:   schema.StageTargetValidation,
		Methodology:    "Pending",
		ExperimentDate: date,
		UploadDate:     date,
		Currency:       "USD",
		Verification:   schema.VerificationPending,
		Tags:           []string{},
		Anonymization:  schema.AnonymizationHigh,
		Summary:        "Processing...",
		DataFormats:    []string{},
		FileSize:       "0 MB",
		Preview: schema.PreviewData{
			Headers:   []string{"Status", "Note"},
			Rows:      []map[string]string{{"Status": "Processing", "Note": pendingNote}},
			ChartType: schema.ChartBar,
			ChartData: []schema.ChartPoint{},
		},
	}

	if draft.Title != "" {
		l.Title = draft.Title
	}
	if draft.Category != "" && draft.Category != schema.CategoryAll {
		l.Category = draft.Category
	}
	if draft.Stage != "" && draft.Stage != schema.StageAll {
		l.FailureStage = draft.Stage
	}
	if !draft.Anonymize {
		l.Anonymization = schema.AnonymizationLow
	}
	return l
}
