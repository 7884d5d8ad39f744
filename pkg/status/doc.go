/*
Package status is the operator-facing side of plantshare.

	+-------------+        +-------------+
	|  operation  | -----> |    Sink     |
	| (workflow)  |        | WriteLine() |
	+-------------+        +------+------+
	                              |
	            +-----------------+-----------------+
	            |                 |                 |
	      +-----+-----+     +-----+-----+     +-----+-----+
	      |  console  |     | Recorder  |     |   HTTP    |
	      | (pkg/log) |     |  (tests)  |     |  bridge   |
	      +-----------+     +-----------+     +-----------+

🎯 Purpose:
- One capability, WriteLine, replaces the host editor's command line
- Formatter turns workflow events (phases, heartbeats, errors) into lines

🔍 Example:

	rec := status.NewRecorder()
	sink := status.Multi(console, rec)
	sink.WriteLine(ctx, "Uploading project to Collaboration for Plant3D...")
*/
package status
