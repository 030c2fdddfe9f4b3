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

// Package pipeline contains the batch jobs that move documents from raw
// attachments to searchable, summarized records.
//
// Three drivers share one shape: a constructor that validates parameters
// up front, and a Run method usable as a jobs.Workload.
//
//   - SegmentationJob splits paper attachments into content-hashed segments
//   - EmbeddingJob embeds stored segments in batches and upserts the vectors
//   - SummarizationJob asks a chat model for a bilingual summary of each paper
//
// Every driver checks its cancel token at a fixed checkpoint (per document
// or per batch) and emits "stopped" there, followed by "finished". Work
// committed before the checkpoint is kept; re-running with skip-existing
// resumes where the previous run left off.
//
// The package also holds the supporting pieces those jobs need: tolerant
// JSON extraction from model replies, the summary schema and mapping, the
// attachment dedupe utility, and pipeline statistics.
package pipeline
