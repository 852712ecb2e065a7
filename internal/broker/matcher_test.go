package broker

import "testing"

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		topic  string
		want   bool
	}{
		{name: "exact match", filter: "sensors/temp", topic: "sensors/temp", want: true},
		{name: "exact mismatch", filter: "sensors/temp", topic: "sensors/humid", want: false},
		{name: "wildcard matches child", filter: "sensors/#", topic: "sensors/temp", want: true},
		{name: "wildcard matches deep child", filter: "sensors/#", topic: "sensors/1/temp", want: true},
		{name: "wildcard matches bare prefix", filter: "sensors/#", topic: "sensors", want: true},
		{name: "wildcard wrong prefix", filter: "sensors/#", topic: "mobile/gps", want: false},
		{name: "plus is not a wildcard", filter: "sensors/+/temp", topic: "sensors/1/temp", want: false},
		{name: "hash mid-filter is literal", filter: "sensors/#/temp", topic: "sensors/1/temp", want: false},
		{name: "empty filter", filter: "", topic: "sensors/temp", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchTopic(tt.filter, tt.topic); got != tt.want {
				t.Errorf("MatchTopic(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
			}
		})
	}
}

func TestFilterString(t *testing.T) {
	f := ParseFilter("sensors/#")
	if f.String() != "sensors/#" {
		t.Errorf("String() = %q, want original text", f.String())
	}
}
