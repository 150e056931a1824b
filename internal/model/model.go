// Package model provides the entity snapshots consumed by the fusion and
// analytics engines. All types are read-only inputs: the engines never
// mutate them and all derived results are built fresh per call.
package model

import (
	"strings"
	"time"
)

// AssetType represents the type of monitored asset.
type AssetType string

const (
	AssetTypeDomain        AssetType = "domain"
	AssetTypeSubdomain     AssetType = "subdomain"
	AssetTypeIP            AssetType = "ip"
	AssetTypeService       AssetType = "service"
	AssetTypeCloudResource AssetType = "cloud_resource"
	AssetTypeCertificate   AssetType = "certificate"
)

// AssetStatus represents the lifecycle status of an asset.
type AssetStatus string

const (
	AssetStatusActive   AssetStatus = "active"
	AssetStatusInactive AssetStatus = "inactive"
	AssetStatusUnknown  AssetStatus = "unknown"
)

// Criticality represents the criticality level of an asset.
type Criticality string

const (
	CriticalityCritical Criticality = "critical"
	CriticalityHigh     Criticality = "high"
	CriticalityMedium   Criticality = "medium"
	CriticalityLow      Criticality = "low"
	CriticalityUnknown  Criticality = "unknown"
)

// SourceType represents an intelligence collection discipline.
type SourceType string

const (
	SourceOSINT  SourceType = "osint"
	SourceSIGINT SourceType = "sigint"
	SourceCYBINT SourceType = "cybint"
	SourceGEOINT SourceType = "geoint"
	SourceHUMINT SourceType = "humint"
)

// ExploitStatus represents the maturity of exploitation tooling for a
// vulnerability.
type ExploitStatus string

const (
	ExploitWeaponized  ExploitStatus = "weaponized"
	ExploitPoC         ExploitStatus = "poc"
	ExploitTheoretical ExploitStatus = "theoretical"
	ExploitUnknown     ExploitStatus = "unknown"
)

// IndicatorType represents the type of an indicator of compromise.
type IndicatorType string

const (
	IndicatorIP          IndicatorType = "ip"
	IndicatorDomain      IndicatorType = "domain"
	IndicatorURL         IndicatorType = "url"
	IndicatorHashMD5     IndicatorType = "hash_md5"
	IndicatorHashSHA1    IndicatorType = "hash_sha1"
	IndicatorHashSHA256  IndicatorType = "hash_sha256"
	IndicatorEmail       IndicatorType = "email"
	IndicatorMutex       IndicatorType = "mutex"
	IndicatorRegistryKey IndicatorType = "registry_key"
)

// Capability represents a security-relevant property of an asset, computed
// once from tags by the collaborator that supplies asset data instead of
// being re-parsed from string lists on every scoring call.
type Capability string

const (
	CapWAF            Capability = "waf"
	CapFirewall       Capability = "firewall"
	CapMFA            Capability = "mfa"
	Cap2FA            Capability = "2fa"
	CapEDR            Capability = "edr"
	CapIDS            Capability = "ids"
	CapMonitored      Capability = "monitored"
	CapLogged         Capability = "logged"
	CapInternetFacing Capability = "internet-facing"
	CapPublic         Capability = "public"
	CapDMZ            Capability = "dmz"
	CapInternal       Capability = "internal"
)

// CapabilitySet is a set of capabilities keyed by capability name.
type CapabilitySet map[Capability]bool

// Has reports whether the set contains the capability.
func (s CapabilitySet) Has(c Capability) bool {
	return s[c]
}

// HasAny reports whether the set contains any of the given capabilities.
func (s CapabilitySet) HasAny(caps ...Capability) bool {
	for _, c := range caps {
		if s[c] {
			return true
		}
	}
	return false
}

// knownCapabilities lists every tag value that maps onto a capability.
var knownCapabilities = []Capability{
	CapWAF, CapFirewall, CapMFA, Cap2FA, CapEDR, CapIDS,
	CapMonitored, CapLogged, CapInternetFacing, CapPublic, CapDMZ, CapInternal,
}

// CapabilitiesFromTags derives a capability set from raw asset tags. Tags
// that do not name a known capability are ignored.
func CapabilitiesFromTags(tags []string) CapabilitySet {
	set := make(CapabilitySet)
	for _, tag := range tags {
		t := Capability(strings.ToLower(strings.TrimSpace(tag)))
		for _, known := range knownCapabilities {
			if t == known {
				set[known] = true
				break
			}
		}
	}
	return set
}

// Source identifies a single intelligence source behind an observation.
type Source struct {
	Type       SourceType `json:"type"`
	Reputation float64    `json:"reputation"` // 0.0-1.0
}

// Asset represents a monitored asset snapshot. Owned and persisted by the
// asset collaborator; the engines receive read-only copies.
type Asset struct {
	ID           string        `json:"id"`
	Type         AssetType     `json:"type"`
	Value        string        `json:"value"`
	Criticality  Criticality   `json:"criticality"`
	Status       AssetStatus   `json:"status"`
	Tags         []string      `json:"tags,omitempty"`
	Capabilities CapabilitySet `json:"capabilities,omitempty"`
	Ports        []int         `json:"ports,omitempty"`
	Services     []string      `json:"services,omitempty"`
	Technologies []string      `json:"technologies,omitempty"`
	Discovered   time.Time     `json:"discovered"`
	LastSeen     time.Time     `json:"last_seen"`
}

// EffectiveCapabilities returns the precomputed capability set, falling back
// to deriving one from tags for callers that only supply tags.
func (a *Asset) EffectiveCapabilities() CapabilitySet {
	if len(a.Capabilities) > 0 {
		return a.Capabilities
	}
	return CapabilitiesFromTags(a.Tags)
}

// Vulnerability represents a vulnerability snapshot, typically CVE-shaped.
type Vulnerability struct {
	ID             string        `json:"id"`
	Title          string        `json:"title,omitempty"`
	Severity       string        `json:"severity"`
	CVSSScore      float64       `json:"cvss_score"` // 0.0-10.0
	ExploitStatus  ExploitStatus `json:"exploit_status"`
	PatchAvailable bool          `json:"patch_available"`
	PublishedDate  *time.Time    `json:"published_date,omitempty"`
}

// IsCVE reports whether the vulnerability id is CVE-shaped.
func (v *Vulnerability) IsCVE() bool {
	return strings.HasPrefix(v.ID, "CVE-")
}

// Indicator represents an indicator of compromise with source attribution.
type Indicator struct {
	ID            string        `json:"id"`
	Type          IndicatorType `json:"type"`
	Value         string        `json:"value"`
	Confidence    float64       `json:"confidence"` // 0.0-1.0
	Sources       []Source      `json:"sources,omitempty"`
	SourceType    SourceType    `json:"source_type,omitempty"`
	FirstSeen     time.Time     `json:"first_seen"`
	LastSeen      time.Time     `json:"last_seen"`
	ThreatActor   string        `json:"threat_actor,omitempty"`
	MalwareFamily string        `json:"malware_family,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
}

// ThreatRecord represents a threat intelligence report referencing zero or
// more vulnerabilities.
type ThreatRecord struct {
	ID                 string     `json:"id"`
	SourceType         SourceType `json:"source_type,omitempty"`
	Description        string     `json:"description,omitempty"`
	CVEIDs             []string   `json:"cve_ids,omitempty"`
	ThreatActor        string     `json:"threat_actor,omitempty"`
	MalwareFamily      string     `json:"malware_family,omitempty"`
	ActiveExploitation bool       `json:"active_exploitation"`
	TargetedCampaign   bool       `json:"targeted_campaign"`
}

// ThreatContext carries caller-supplied exploitation and targeting flags for
// a single vulnerability. It is ephemeral: built per request by the threat
// context collaborator and discarded after scoring.
type ThreatContext struct {
	ActiveExploitation    bool `json:"active_exploitation"`
	TargetedCampaign      bool `json:"targeted_campaign"`
	APTLinked             bool `json:"apt_linked"`
	ThreatMentions        int  `json:"threat_mentions"`
	TargetingOrganization bool `json:"targeting_organization"`
	TargetingIndustry     bool `json:"targeting_industry"`
	TargetingRegion       bool `json:"targeting_region"`
}

// PathNode is the simplified asset view used inside an attack path.
type PathNode struct {
	ID          string      `json:"id"`
	Type        AssetType   `json:"type"`
	Value       string      `json:"value"`
	Criticality Criticality `json:"criticality"`
	Tags        []string    `json:"tags,omitempty"`
}

// AttackPath is an ordered node sequence resolved by the graph collaborator,
// plus the vulnerabilities observed along it. Ephemeral per request.
type AttackPath struct {
	Nodes           []PathNode      `json:"nodes"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities,omitempty"`
}

// Event is a timestamped observation used by temporal correlation and the
// predictive analytics timelines.
type Event struct {
	ID         string                 `json:"id,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	SourceType SourceType             `json:"source_type,omitempty"`
	Summary    string                 `json:"summary,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// SpatialEntity is an entity with a resolved geographic location, used by
// spatial correlation. Location resolution is a collaborator concern.
type SpatialEntity struct {
	ID         string     `json:"id"`
	Type       string     `json:"type,omitempty"`
	Country    string     `json:"country,omitempty"`
	Region     string     `json:"region,omitempty"`
	Location   string     `json:"location,omitempty"`
	SourceType SourceType `json:"source_type,omitempty"`
}

// BestLocation returns the most specific populated location field, checking
// country, then region, then free-form location.
func (e *SpatialEntity) BestLocation() string {
	if e.Country != "" {
		return e.Country
	}
	if e.Region != "" {
		return e.Region
	}
	return e.Location
}

// RiskPoint is one observation in a historical risk series.
type RiskPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Risk      float64   `json:"risk"` // 0.0-10.0
}

// AttackRecord is one historical attack observation against an asset.
type AttackRecord struct {
	TargetAssetID string    `json:"target_asset_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// Severity bands shared by every engine that maps a 0-10 score to a label.
// The banding is a compatibility contract: critical >=9, high >=7,
// medium >=4, else low.
const (
	SeverityCriticalThreshold = 9.0
	SeverityHighThreshold     = 7.0
	SeverityMediumThreshold   = 4.0
)

// SeverityForScore maps a 0-10 score to its severity band.
func SeverityForScore(score float64) string {
	switch {
	case score >= SeverityCriticalThreshold:
		return "critical"
	case score >= SeverityHighThreshold:
		return "high"
	case score >= SeverityMediumThreshold:
		return "medium"
	default:
		return "low"
	}
}
