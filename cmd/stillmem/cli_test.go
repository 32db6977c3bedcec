package main

import (
	"bytes"
	"strings"
	"testing"
)

func runRootCommandForTest(args ...string) (string, error) {
	root := buildRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommandRequiresSubcommand(t *testing.T) {
	_, err := runRootCommandForTest()
	if err == nil {
		t.Fatal("expected an error when invoked without a subcommand")
	}
	if !strings.Contains(err.Error(), "a subcommand is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := buildRootCommand()
	want := []string{"remember", "recall", "forget", "retention", "events", "status", "sweep", "console"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("subcommand %q not registered", name)
		}
	}
}

func TestRootHelpMentionsCoreVerbs(t *testing.T) {
	out, err := runRootCommandForTest("--help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, needle := range []string{"remember", "recall", "retention", "sweep"} {
		if !strings.Contains(out, needle) {
			t.Fatalf("help output missing %q:\n%s", needle, out)
		}
	}
}

func TestRecallRequiresOwnerFlag(t *testing.T) {
	_, err := runRootCommandForTest("recall", "morning ritual")
	if err == nil {
		t.Fatal("expected recall without --owner to fail")
	}
	if !strings.Contains(err.Error(), "owner") {
		t.Fatalf("unexpected error: %v", err)
	}
}
