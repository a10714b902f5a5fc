package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// frameworkInfo is a static catalog entry for a compliance framework.
type frameworkInfo struct {
	Name            string
	Region          string
	AppliesTo       string
	KeyPoints       []string
	MaxPenalty      string
	AuthorityNotify time.Duration // 0 means no fixed deadline
	IndividualsNot  time.Duration
	Threshold       string
}

// complianceCatalog holds framework requirements and breach notification
// timelines. Local data, no network.
var complianceCatalog = map[string]frameworkInfo{
	"gdpr": {
		Name:      "General Data Protection Regulation",
		Region:    "EU/EEA/UK",
		AppliesTo: "personal data",
		KeyPoints: []string{
			"72-hour breach notification",
			"Right to erasure",
			"Data portability",
			"Privacy by design",
			"DPO required for some organizations",
		},
		MaxPenalty:      "€20M or 4% global turnover",
		AuthorityNotify: 72 * time.Hour,
		IndividualsNot:  30 * 24 * time.Hour,
		Threshold:       "high risk to individuals",
	},
	"hipaa": {
		Name:      "Health Insurance Portability and Accountability Act",
		Region:    "United States",
		AppliesTo: "health information (PHI)",
		KeyPoints: []string{
			"Administrative, Physical, Technical safeguards",
			"Business Associate Agreements required",
			"Minimum necessary standard",
			"60-day breach notification",
			"Annual risk assessments",
		},
		MaxPenalty:      "$2M per violation type/year",
		AuthorityNotify: 60 * 24 * time.Hour,
		IndividualsNot:  60 * 24 * time.Hour,
		Threshold:       "unsecured PHI",
	},
	"pci_dss": {
		Name:      "Payment Card Industry Data Security Standard",
		Region:    "Global",
		AppliesTo: "payment card data",
		KeyPoints: []string{
			"12 core requirements",
			"Quarterly vulnerability scans",
			"Annual penetration testing",
			"Network segmentation",
			"Encryption of cardholder data",
		},
		MaxPenalty:      "Loss of card processing ability",
		AuthorityNotify: 24 * time.Hour,
		Threshold:       "any cardholder data compromise",
	},
	"sox": {
		Name:      "Sarbanes-Oxley Act",
		Region:    "United States",
		AppliesTo: "public company financial data",
		KeyPoints: []string{
			"IT General Controls (ITGC)",
			"Internal controls testing",
			"Management certification",
			"Audit trails required",
			"Change management controls",
		},
		MaxPenalty:      "$5M and 20 years imprisonment",
		AuthorityNotify: 4 * 24 * time.Hour,
		Threshold:       "material financial impact",
	},
	"iso_27001": {
		Name:      "ISO/IEC 27001 Information Security Management",
		Region:    "Global",
		AppliesTo: "information security management systems",
		KeyPoints: []string{
			"Risk-based ISMS",
			"Annex A control catalog",
			"Management review cycle",
			"Internal audits required",
			"Continuous improvement",
		},
		MaxPenalty: "Loss of certification",
		Threshold:  "certification scope incidents",
	},
	"nis2": {
		Name:      "Network and Information Security Directive 2",
		Region:    "EU",
		AppliesTo: "essential and important entities",
		KeyPoints: []string{
			"24-hour early warning for significant incidents",
			"72-hour incident notification",
			"Management accountability",
			"Supply chain security requirements",
			"Mandatory risk management measures",
		},
		MaxPenalty:      "€10M or 2% global turnover",
		AuthorityNotify: 24 * time.Hour,
		Threshold:       "significant incidents",
	},
}

// applicability maps data types and regions to frameworks.
var applicability = map[string]map[string][]string{
	"by_data_type": {
		"personal_data":     {"gdpr"},
		"health_data":       {"hipaa"},
		"payment_cards":     {"pci_dss"},
		"financial_records": {"sox"},
	},
	"by_region": {
		"EU":     {"gdpr", "nis2"},
		"US":     {"hipaa", "sox"},
		"Global": {"pci_dss", "iso_27001"},
	},
}

// BreachTimeline is the notification deadline summary for a framework.
type BreachTimeline struct {
	AuthorityNotification  string `json:"authority_notification,omitempty"`
	IndividualNotification string `json:"individual_notification,omitempty"`
	Threshold              string `json:"threshold"`
	StrictestDeadline      string `json:"strictest_deadline,omitempty"`
}

// FrameworkGuidance is detailed guidance for a single framework.
type FrameworkGuidance struct {
	Framework       string         `json:"framework"`
	FullName        string         `json:"full_name"`
	Region          string         `json:"region"`
	AppliesTo       string         `json:"applies_to"`
	KeyRequirements []string       `json:"key_requirements"`
	MaxPenalty      string         `json:"max_penalty"`
	BreachTimeline  BreachTimeline `json:"breach_timeline"`
}

// ComplianceRecommendation is scenario-driven guidance across frameworks.
type ComplianceRecommendation struct {
	ApplicableFrameworks    []string `json:"applicable_frameworks"`
	PrimaryFramework        string   `json:"primary_framework,omitempty"`
	StrictestBreachDeadline string   `json:"strictest_breach_deadline,omitempty"`
	ImmediateActions        []string `json:"immediate_actions,omitempty"`
	KeyConsiderations       []string `json:"key_considerations,omitempty"`
}

type complianceOutput struct {
	Query             string                    `json:"query"`
	FrameworkGuidance *FrameworkGuidance        `json:"framework_guidance,omitempty"`
	Recommendations   *ComplianceRecommendation `json:"recommendations,omitempty"`
	AllApplicable     []string                  `json:"all_applicable"`
}

// ComplianceGuidanceTool serves regulatory guidance from the local catalog.
type ComplianceGuidanceTool struct{}

func NewComplianceGuidanceTool() *ComplianceGuidanceTool {
	return &ComplianceGuidanceTool{}
}

func (t *ComplianceGuidanceTool) Name() string { return "compliance_guidance" }

func (t *ComplianceGuidanceTool) Description() string {
	return `Get regulatory compliance guidance for security incidents and data handling.

Query by specific framework (GDPR, HIPAA, PCI_DSS, SOX, ISO_27001, NIS2), or
by situation (data_type, region, incident_type) to find which frameworks
apply and the strictest breach notification deadline.`
}

func (t *ComplianceGuidanceTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"framework": map[string]interface{}{
				"type":        "string",
				"description": "Specific framework: gdpr, hipaa, pci_dss, sox, iso_27001, nis2",
			},
			"data_type": map[string]interface{}{
				"type":        "string",
				"description": "Data involved: personal_data, health_data, payment_cards, financial_records",
			},
			"region": map[string]interface{}{
				"type":        "string",
				"description": "Geographic region: EU, US, Global",
			},
			"incident_type": map[string]interface{}{
				"type":        "string",
				"description": "Incident type, e.g. breach, vulnerability",
			},
		},
	}
}

func (t *ComplianceGuidanceTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var req struct {
		Framework    string `json:"framework"`
		DataType     string `json:"data_type"`
		Region       string `json:"region"`
		IncidentType string `json:"incident_type"`
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}

	if req.Framework != "" {
		return t.frameworkGuidance(req.Framework)
	}
	if req.DataType != "" || req.Region != "" {
		return t.recommendations(req.DataType, req.Region, req.IncidentType), nil
	}
	return t.overview(), nil
}

func (t *ComplianceGuidanceTool) frameworkGuidance(name string) (*Result, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	info, ok := complianceCatalog[key]
	if !ok {
		return &Result{Success: false, Error: fmt.Sprintf("unknown framework: %s", name)}, nil
	}

	timeline := BreachTimeline{Threshold: info.Threshold}
	if info.AuthorityNotify > 0 {
		timeline.AuthorityNotification = formatDeadline(info.AuthorityNotify)
		timeline.StrictestDeadline = timeline.AuthorityNotification
	}
	if info.IndividualsNot > 0 {
		timeline.IndividualNotification = formatDeadline(info.IndividualsNot)
	}

	display := strings.ToUpper(key)
	out := &complianceOutput{
		Query: name,
		FrameworkGuidance: &FrameworkGuidance{
			Framework:       display,
			FullName:        info.Name,
			Region:          info.Region,
			AppliesTo:       info.AppliesTo,
			KeyRequirements: info.KeyPoints,
			MaxPenalty:      info.MaxPenalty,
			BreachTimeline:  timeline,
		},
		AllApplicable: []string{display},
	}

	return &Result{
		Success: true,
		Data:    out,
		Summary: fmt.Sprintf("Guidance for %s (%s)", display, info.Name),
	}, nil
}

func (t *ComplianceGuidanceTool) recommendations(dataType, region, incidentType string) *Result {
	seen := map[string]bool{}
	var applicable []string
	for _, fw := range applicability["by_data_type"][dataType] {
		if !seen[fw] {
			seen[fw] = true
			applicable = append(applicable, fw)
		}
	}
	for _, fw := range applicability["by_region"][region] {
		if !seen[fw] {
			seen[fw] = true
			applicable = append(applicable, fw)
		}
	}

	query := fmt.Sprintf("data_type=%s, region=%s", dataType, region)

	if len(applicable) == 0 {
		return &Result{
			Success: true,
			Data: &complianceOutput{
				Query: query,
				Recommendations: &ComplianceRecommendation{
					ApplicableFrameworks: []string{},
					KeyConsiderations:    []string{"No specific frameworks identified for this scenario"},
				},
				AllApplicable: []string{},
			},
			Summary: "No applicable frameworks identified",
		}
	}

	display := make([]string, len(applicable))
	for i, fw := range applicable {
		display[i] = strings.ToUpper(fw)
	}

	rec := &ComplianceRecommendation{
		ApplicableFrameworks: display,
		PrimaryFramework:     display[0],
	}

	if incidentType == "breach" {
		if d, ok := strictestAuthorityDeadline(applicable); ok {
			rec.StrictestBreachDeadline = formatDeadline(d)
		}
		deadline := rec.StrictestBreachDeadline
		if deadline == "" {
			deadline = "check frameworks"
		}
		rec.ImmediateActions = []string{
			"Document the incident discovery time",
			"Assess the scope and impact",
			"Preserve evidence",
			fmt.Sprintf("Prepare notifications (deadline: %s)", deadline),
			"Identify affected individuals/data",
		}
	}

	for _, fw := range applicable {
		info := complianceCatalog[fw]
		n := len(info.KeyPoints)
		if n > 2 {
			n = 2
		}
		rec.KeyConsiderations = append(rec.KeyConsiderations, info.KeyPoints[:n]...)
	}

	return &Result{
		Success: true,
		Data: &complianceOutput{
			Query:           query,
			Recommendations: rec,
			AllApplicable:   display,
		},
		Summary: fmt.Sprintf("%d applicable framework(s): %s", len(display), strings.Join(display, ", ")),
	}
}

func (t *ComplianceGuidanceTool) overview() *Result {
	all := make([]string, 0, len(complianceCatalog))
	for key := range complianceCatalog {
		all = append(all, strings.ToUpper(key))
	}
	sort.Strings(all)

	return &Result{
		Success: true,
		Data: &complianceOutput{
			Query: "overview",
			Recommendations: &ComplianceRecommendation{
				ApplicableFrameworks: all,
				KeyConsiderations: []string{
					"Identify what type of data you process",
					"Determine your geographic scope",
					"Assess which regulations apply",
					"Implement appropriate controls",
					"Maintain compliance documentation",
				},
			},
			AllApplicable: all,
		},
		Summary: "Compliance overview across all frameworks",
	}
}

// strictestAuthorityDeadline returns the shortest authority notification
// deadline among the given frameworks.
func strictestAuthorityDeadline(frameworks []string) (time.Duration, bool) {
	var min time.Duration
	found := false
	for _, fw := range frameworks {
		d := complianceCatalog[fw].AuthorityNotify
		if d == 0 {
			continue
		}
		if !found || d < min {
			min = d
			found = true
		}
	}
	return min, found
}

func formatDeadline(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	case d <= 72*time.Hour:
		// Regulations phrase short deadlines in hours (GDPR 72 hours,
		// NIS2 24 hours), so keep that unit through 72h.
		return fmt.Sprintf("%d hours", int(d.Hours()))
	default:
		return fmt.Sprintf("%d days", int(d.Hours())/24)
	}
}
