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


package pipeline

// State is a stage of a pipeline run.
type State int

const (
	StateInit State = iota
	StateFetching
	StateTransforming
	StateLoading
	StateDone
	StateAborted
)

var stateNames = [...]string{
	StateInit:         "INIT",
	StateFetching:     "FETCHING",
	StateTransforming: "TRANSFORMING",
	StateLoading:      "LOADING",
	StateDone:         "DONE",
	StateAborted:      "ABORTED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}
