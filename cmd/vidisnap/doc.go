// Command vidisnap runs the video first-frame classification service and
// offers client commands for talking to it.
//
//	vidisnap serve                 run the HTTP daemon
//	vidisnap classify clip.mp4     classify a local file (no daemon needed)
//	vidisnap health | status       query a running daemon
//	vidisnap history               recent request outcomes
//	vidisnap config init|validate  manage the configuration file
package main
