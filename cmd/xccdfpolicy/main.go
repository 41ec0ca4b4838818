// Command xccdfpolicy is a thin CLI harness around the xccdfpolicy
// evaluation core — a demonstration and fixture-driving surface, not
// part of the policy-evaluation core itself (§1: "the command-line
// surface" is an external collaborator).
package main

import "github.com/oscap-go/xccdfpolicy/cmd/xccdfpolicy/cmd"

func main() {
	cmd.Execute()
}
