package main

import "testing"

func TestParseServerCommand(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		command string
		args    []string
		wantErr bool
	}{
		{name: "bare command", value: "lean --server", command: "lean", args: []string{"--server"}},
		{name: "lake serve", value: "lake serve --", command: "lake", args: []string{"serve", "--"}},
		{name: "extra whitespace", value: "  lean   --server ", command: "lean", args: []string{"--server"}},
		{name: "empty", value: "", wantErr: true},
		{name: "whitespace only", value: "   \t ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseServerCommand(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseServerCommand(%q) accepted", tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseServerCommand(%q) = %v", tt.value, err)
			}
			if cfg.Command != tt.command {
				t.Errorf("Command = %q, want %q", cfg.Command, tt.command)
			}
			if len(cfg.Args) != len(tt.args) {
				t.Fatalf("Args = %v, want %v", cfg.Args, tt.args)
			}
			for i, a := range tt.args {
				if cfg.Args[i] != a {
					t.Errorf("Args[%d] = %q, want %q", i, cfg.Args[i], a)
				}
			}
		})
	}
}
