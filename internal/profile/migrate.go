package profile

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// legacyDoc is the v1 simulation-backend shape seen in older profile
// files: rules keyed "rules" instead of "scpi", with "match"/"reply"
// instead of "command"/"response".
type legacyDoc struct {
	Simulation *struct {
		State map[string]any `yaml:"state"`
		Rules []struct {
			Match  string `yaml:"match"`
			Reply  string `yaml:"reply"`
			Set    string `yaml:"set"`
			Expr   string `yaml:"expr"`
		} `yaml:"rules"`
	} `yaml:"simulation"`
}

// migrateLegacySimShape detects the v1 `simulation.rules[].{match,reply}`
// shape and rewrites it in place to the v2 `simulation.scpi[].{command,
// response}` shape this implementation understands, rather than silently
// misinterpreting it as an already-v2 document with an empty rule list.
func migrateLegacySimShape(data []byte) ([]byte, error) {
	var probe map[string]any
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return data, nil // let the real decode surface the YAML error
	}
	simRaw, ok := probe["simulation"].(map[string]any)
	if !ok {
		return data, nil
	}
	if _, hasSCPI := simRaw["scpi"]; hasSCPI {
		return data, nil // already v2
	}
	rulesRaw, hasRules := simRaw["rules"]
	if !hasRules {
		return data, nil // no rules at all, nothing to migrate
	}

	var legacy legacyDoc
	if err := yaml.Unmarshal(data, &legacy); err != nil {
		return nil, err
	}
	if legacy.Simulation == nil {
		return data, nil
	}

	migratedRules := make([]map[string]any, 0, len(legacy.Simulation.Rules))
	for _, r := range legacy.Simulation.Rules {
		rule := map[string]any{"command": r.Match}
		if r.Set != "" {
			rule["action"] = "set"
			rule["target"] = r.Set
			rule["value"] = r.Expr
		}
		if r.Reply != "" {
			rule[replyFieldName(r.Reply)] = r.Reply
		}
		migratedRules = append(migratedRules, rule)
	}

	simRaw["scpi"] = migratedRules
	delete(simRaw, "rules")
	probe["simulation"] = simRaw

	_ = rulesRaw
	return yaml.Marshal(probe)
}

// replyFieldName classifies a v1 "reply" string into the v2 schema's
// response (literal) or response_expr (evaluated) field. The v1 format
// never distinguished the two explicitly, so this is a best-effort,
// one-time translation of old semantics, not a general-purpose runtime
// heuristic: it only ever runs once per legacy profile, at migration
// time, and the resulting v2 document always carries the unambiguous
// field from then on.
func replyFieldName(reply string) string {
	if looksLikeLegacyExpression(reply) {
		return "response_expr"
	}
	return "response"
}

// looksLikeLegacyExpression recognizes only the identifier forms the v1
// expression grammar actually supports, not bare operator characters: a
// literal value like `+0,"No error"` or a signed preamble field must
// never be misread as an expression merely for containing a "+" or "(".
func looksLikeLegacyExpression(s string) bool {
	for _, ref := range []string{"groups.", "state.", "random.uniform", "float(", "int(", "abs("} {
		if strings.Contains(s, ref) {
			return true
		}
	}
	return false
}
