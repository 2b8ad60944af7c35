// Package failover runs the supervisor's monitoring loop.
//
// Every poll interval the Coordinator scans the members in registry order for
// the first one that is both active and alive. While one is found the system
// is Stable. When none is, the system is Degraded and the coordinator promotes
// the lowest-index member whose activation call succeeds. If every activation
// fails in the same episode the coordinator runs the shutdown protocol and
// reaches Terminated, which ends the loop.
//
//	Stable ──(no active+alive member)──▶ Degraded ──(activate ok)──▶ Stable
//	                                        │
//	                                        └──(all activations fail)──▶ Terminated
//
// Transport failures are never fatal to the loop: during the scan they count
// as "not alive", during promotion as a failed attempt. Any other error from a
// member is treated as a bug and stops the coordinator.
package failover
