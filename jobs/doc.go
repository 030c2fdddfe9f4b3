// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package jobs runs long-lived pipeline workloads in the background and
// exposes their progress for polling.
//
// A Registry hands out job IDs, runs each workload on a goroutine drawn
// from a bounded ants pool, and folds the workload's progress events into
// a per-job status: running flag, exit code, counters, last message and
// an append-only event log. Every event is also written as one JSON line
// to <log dir>/<job id>.log when a log directory is configured.
//
// Cancellation is cooperative. Cancel raises the job's CancelToken and
// marks the job stopped with ExitCancelled right away; the workload sees
// the token at its next checkpoint and returns. In-flight calls are not
// interrupted.
//
// Jobs live only in memory and do not survive a restart.
package jobs
