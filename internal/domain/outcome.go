package domain

type IssueStatus string

const (
	IssueAlreadyIssued IssueStatus = "already_issued"
	IssueIssued        IssueStatus = "issued"
	IssuePending       IssueStatus = "pending"
)

// IssueResult is what an eligibility check ended with. Pending is the normal
// state for most calls, not an error.
type IssueResult struct {
	Status      IssueStatus  `json:"status"`
	Certificate *Certificate `json:"certificate,omitempty"`
	Remaining   int          `json:"remaining"`
}

type Outcome string

const (
	OutcomeAdvanced          Outcome = "advanced"
	OutcomeCertificateIssued Outcome = "certificate_issued"
	OutcomeCertificateExists Outcome = "certificate_exists"
	OutcomeModulesRemaining  Outcome = "modules_remaining"
)

type ReconcileResult struct {
	Outcome     Outcome       `json:"outcome"`
	Progress    *UserProgress `json:"progress"`
	Certificate *Certificate  `json:"certificate,omitempty"`
	Remaining   int           `json:"remaining"`
}

// CatalogStrategy names the query path that produced a catalog listing.
type CatalogStrategy string

const (
	StrategyOrdered            CatalogStrategy = "ordered"
	StrategyFilteredClientSort CatalogStrategy = "filtered_client_sort"
	StrategyFullScan           CatalogStrategy = "full_scan"
)

func (s CatalogStrategy) Degraded() bool { return s != StrategyOrdered }
