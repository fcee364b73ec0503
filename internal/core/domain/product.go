package domain

import "time"

// BasicInfo is the core identity of an extracted product. Name, code and
// category must be repaired before persistence or the record carries an
// incomplete-basic-info warning.
type BasicInfo struct {
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Category    string  `json:"category"`
	BasePrice   float64 `json:"base_price"`
	Description string  `json:"description"`
}

// Specification is a single technical parameter entry.
type Specification struct {
	Value       string `json:"value"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
}

type Feature struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
}

type ApplicationScenario struct {
	Name      string `json:"name"`
	Icon      string `json:"icon,omitempty"`
	SortOrder int    `json:"sort_order"`
}

type AccessoryType string

const (
	AccessoryStandard AccessoryType = "standard"
	AccessoryOptional AccessoryType = "optional"
)

type Accessory struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Type        AccessoryType `json:"type"`
}

type Certificate struct {
	Name              string `json:"name"`
	Type              string `json:"type"`
	CertificateNumber string `json:"certificate_number,omitempty"`
	Description       string `json:"description"`
}

type Warranty struct {
	Period   string   `json:"period"`
	Coverage string   `json:"coverage"`
	Terms    []string `json:"terms"`
}

type ContactInfo struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
	Address string `json:"address,omitempty"`
}

type SupportInfo struct {
	Warranty        Warranty    `json:"warranty"`
	ContactInfo     ContactInfo `json:"contact_info"`
	ServicePromises []string    `json:"service_promises"`
}

// DraftConfidence is the model's self-reported confidence per section.
type DraftConfidence struct {
	BasicInfo      float64 `json:"basic_info"`
	Specifications float64 `json:"specifications"`
	Features       float64 `json:"features"`
	Overall        float64 `json:"overall"`
}

// ProductDraft is the schema-constrained structured object emitted by the
// LLM extractor and refined by the quality validator.
type ProductDraft struct {
	BasicInfo            BasicInfo                `json:"basic_info"`
	Specifications       map[string]Specification `json:"specifications"`
	Features             []Feature                `json:"features"`
	ApplicationScenarios []ApplicationScenario    `json:"application_scenarios"`
	Accessories          []Accessory              `json:"accessories"`
	Certificates         []Certificate            `json:"certificates"`
	SupportInfo          SupportInfo              `json:"support_info"`
	Confidence           DraftConfidence          `json:"confidence"`
}

// EnsureDefaults fills nil collections so that a successful draft always
// carries every required top-level key.
func (d *ProductDraft) EnsureDefaults() {
	if d.Specifications == nil {
		d.Specifications = map[string]Specification{}
	}
	if d.Features == nil {
		d.Features = []Feature{}
	}
	if d.ApplicationScenarios == nil {
		d.ApplicationScenarios = []ApplicationScenario{}
	}
	if d.Accessories == nil {
		d.Accessories = []Accessory{}
	}
	if d.Certificates == nil {
		d.Certificates = []Certificate{}
	}
	if d.SupportInfo.Warranty.Terms == nil {
		d.SupportInfo.Warranty.Terms = []string{}
	}
	if d.SupportInfo.ServicePromises == nil {
		d.SupportInfo.ServicePromises = []string{}
	}
}

// Product is the catalog entity materialized from a confirmed analysis.
// It holds a weak back-reference to the record that produced it.
type Product struct {
	ID               string                   `json:"id"`
	Name             string                   `json:"name"`
	Code             string                   `json:"code"`
	Category         string                   `json:"category"`
	BasePrice        float64                  `json:"base_price"`
	Description      string                   `json:"description"`
	Specifications   map[string]Specification `json:"specifications"`
	AnalysisRecordID string                   `json:"analysis_record_id,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
}
