// Package agent implements the execution runtime driving a model/tool loop
// per run, plus the delegation bridge that lets one agent run another as a
// tool. Runs communicate progress exclusively through the ordered event
// stream carried by their RunContext.
package agent
