// Command flowmc runs the flow assisted sampler on a built in target and
// inspects the flow checkpoints it writes.
//
//	flowmc run --config run.yaml --metrics-addr :9090
//	flowmc flow --checkpoint flow.json.zst -n 10
package main
