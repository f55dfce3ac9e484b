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


// Package storage provides the local persistence layer for issueindex.
//
// Two repositories are defined here and implemented by the badger
// subpackage:
//
//   - CheckpointRepository: run progress, keyed by index name, so a run
//     interrupted part way can resume from the last loaded page
//   - EmbeddingCache: vectors returned by the primary embedding backend,
//     keyed by a content hash, with a TTL
//
// Values are encoded with mus-go. The encoders live in serialization.go so
// that any backend stores the same bytes.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/var/lib/issueindex", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	checkpoints := badger.NewCheckpointRepository(backend)
//	cp, err := checkpoints.LoadCheckpoint(ctx, "redmine_issues")
//
// Use in tests with in-memory storage:
//
//	backend, err := badger.OpenBackend("", true)
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use.
package storage
