/*
Package operation implements the share workflow.

	+----------------+     +------------------+     +-----------+
	| authenticating | --> | resolving-target | --> |  staging  |
	+----------------+     +------------------+     +-----+-----+
	                                                      |
	                       +-------------------+    +-----+-----+
	                       | reopening-project | <- | migrating |
	                       +---------+---------+    +-----------+
	                                 |
	+--------------------+     +-----+-------------------+
	| normalizing-layout | --> | collecting-associations |
	+--------------------+     +-----------+-------------+
	                                       |
	+----------------------------+   +-----+-----+   +---------+
	| signing-in-document-server |-->| uploading |-->| closing |
	+----------------------------+   +-----------+   +---------+

🎯 Purpose:
- Sequences sign in, target resolution, staging, migration and upload
- Reports every step through a status.Sink
- Turns the run into a single Result with a distinct canceled outcome

🔄 Flow:
1. Removes the collaboration cache file
2. Reuses the backend session or signs in once
3. Resolves the hub, project and optional folder
4. Copies the project into the working folder
5. Converts server databases to sqlite when the source is not on sqlite
6. Reopens the staged copy, creates missing folders, collects xrefs
7. Uploads next to a heartbeat, then closes the staged project

⚡ Concurrency:
The upload call and the heartbeat run in one errgroup. The heartbeat is
canceled when the upload returns and is awaited before the staged project
is closed. Runner wraps a Workflow for the synchronous and asynchronous
commands.
*/
package operation
