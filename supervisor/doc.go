// Package supervisor keeps a fleet of DVL instruments configured and
// measuring.
//
// Each registered device runs its own loop: dial the transport, create a
// nortek.Engine, run the setup sequence and stay in the running state until
// the context is canceled or the engine faults. Failed attempts are retried
// with exponential backoff. Reconfiguration requests are serialized with
// the loop per device, since an engine is driven by one caller at a time.
package supervisor
