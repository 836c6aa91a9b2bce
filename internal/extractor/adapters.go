package extractor

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/job-extractor/internal/urlutil"
)

// AdapterKind selects the extraction strategy for a site.
type AdapterKind int

const (
	GenericAdapter AdapterKind = iota
	LinkedInAdapter
	IndeedAdapter
)

func (k AdapterKind) String() string {
	switch k {
	case LinkedInAdapter:
		return "linkedin"
	case IndeedAdapter:
		return "indeed"
	default:
		return "generic"
	}
}

// ParseAdapterKind maps a config key back to its kind.
func ParseAdapterKind(name string) (AdapterKind, bool) {
	switch name {
	case "linkedin":
		return LinkedInAdapter, true
	case "indeed":
		return IndeedAdapter, true
	case "generic":
		return GenericAdapter, true
	}
	return GenericAdapter, false
}

// AdapterFor dispatches on the hostname with any leading "www." removed.
// Only exact matches select a site adapter.
func AdapterFor(host string) AdapterKind {
	switch urlutil.NormalizeHost(host) {
	case "linkedin.com":
		return LinkedInAdapter
	case "indeed.com":
		return IndeedAdapter
	default:
		return GenericAdapter
	}
}

// FieldChains holds one selector chain per posting field.
type FieldChains struct {
	Title       SelectorChain
	Company     SelectorChain
	Description SelectorChain
}

func (f FieldChains) list() []SelectorChain {
	return []SelectorChain{f.Title, f.Company, f.Description}
}

// Chains returns the selector chains for k. Each chain lists the current
// markup first; the order is part of the extraction behavior.
func (k AdapterKind) Chains() FieldChains {
	switch k {
	case LinkedInAdapter:
		return linkedInChains
	case IndeedAdapter:
		return indeedChains
	default:
		return genericChains
	}
}

// LinkedIn: logged-in job view (unified top card), then the older unified
// card, then the public guest page.
var linkedInChains = FieldChains{
	Title: SelectorChain{
		".job-details-jobs-unified-top-card__job-title h1",
		".job-details-jobs-unified-top-card__job-title",
		".jobs-unified-top-card__job-title",
		".t-24.job-details-jobs-unified-top-card__job-title",
		".top-card-layout__title",
		".topcard__title",
		"h1.t-24",
	},
	Company: SelectorChain{
		".job-details-jobs-unified-top-card__company-name a",
		".job-details-jobs-unified-top-card__company-name",
		".jobs-unified-top-card__company-name a",
		".jobs-unified-top-card__company-name",
		".topcard__org-name-link",
		".top-card-layout__second-subline .topcard__flavor a",
		"a[data-tracking-control-name='public_jobs_topcard-org-name']",
	},
	Description: SelectorChain{
		"#job-details",
		".jobs-description__content .jobs-box__html-content",
		".jobs-description-content__text",
		".jobs-box__html-content",
		".show-more-less-html__markup",
		".description__text",
		".jobs-description",
	},
}

var indeedChains = FieldChains{
	Title: SelectorChain{
		"h1[data-testid='jobsearch-JobInfoHeader-title']",
		"[data-testid='jobsearch-JobInfoHeader-title']",
		".jobsearch-JobInfoHeader-title",
		"[data-testid='simpler-jobTitle']",
		".jobsearch-JobInfoHeader-title-container h1",
	},
	Company: SelectorChain{
		"[data-testid='inlineHeader-companyName'] a",
		"[data-testid='inlineHeader-companyName']",
		"[data-company-name='true']",
		".jobsearch-CompanyInfoContainer a",
		".jobsearch-InlineCompanyRating div:first-child",
	},
	Description: SelectorChain{
		"#jobDescriptionText",
		"[data-testid='jobsearch-JobComponent-description']",
		".jobsearch-jobDescriptionText",
		".jobsearch-JobComponent-description",
	},
}

var genericChains = FieldChains{
	Title: SelectorChain{
		"h1",
		"[class*='job-title']",
		"[class*='jobTitle']",
	},
	Company: SelectorChain{
		"[class*='company']",
		"[id*='company']",
	},
	Description: SelectorChain{
		"[class*='description']",
		"[id*='description']",
		"[class*='job-details']",
	},
}

// Parse runs the adapter once against a single snapshot.
func (k AdapterKind) Parse(doc *goquery.Document) ParsedJobPosting {
	chains := k.Chains().list()
	texts := make([]string, len(chains))
	for i, chain := range chains {
		texts[i], _ = chain.Text(doc)
	}
	return k.assemble(texts, doc)
}

// assemble turns raw chain results into a posting. The generic adapter
// fills fields its chains missed from JSON-LD on the last snapshot.
func (k AdapterKind) assemble(texts []string, doc *goquery.Document) ParsedJobPosting {
	posting := ParsedJobPosting{
		JobTitle:       cleanInline(texts[0]),
		CompanyName:    cleanInline(texts[1]),
		JobDescription: CleanDescription(texts[2]),
	}
	if k != GenericAdapter || (posting.JobTitle != "" && posting.CompanyName != "" && posting.JobDescription != "") {
		return posting
	}
	for _, ld := range jsonLDPostings(doc) {
		if posting.JobTitle == "" {
			posting.JobTitle = cleanInline(htmlToText(ld.Title))
		}
		if posting.CompanyName == "" {
			posting.CompanyName = cleanInline(htmlToText(ld.Company))
		}
		if posting.JobDescription == "" {
			posting.JobDescription = CleanDescription(htmlToText(ld.Description))
		}
	}
	return posting
}
