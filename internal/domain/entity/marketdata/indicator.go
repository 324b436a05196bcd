package marketdata

// IndicatorConfig describes a study attached to a chart series. ScriptID
// and Version address the upstream script; Anchor and Delta are validated
// against the chart resolution before any transport work happens. Inputs
// carries script defaults merged with caller overrides.
type IndicatorConfig struct {
	ID       string         `json:"id"`
	Name     string         `json:"name,omitempty"`
	ScriptID string         `json:"script_id"`
	Version  string         `json:"version,omitempty"`
	Anchor   string         `json:"anchor,omitempty"`
	Delta    string         `json:"delta,omitempty"`
	Inputs   map[string]any `json:"inputs,omitempty"`
}
