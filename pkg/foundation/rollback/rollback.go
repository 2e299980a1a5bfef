// Copyright © 2025 Meroxa, Inc.
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

package rollback

// R collects undo steps while a multi step mutation is in progress. Declare it
// near the start of a function together with a deferred call to R.Execute,
// append the reversal of every mutation that succeeded and call R.Skip once
// the whole operation succeeded.
//
//	var r rollback.R
//	defer r.Execute()
//
//	table.put(entry)
//	r.Append(func() { table.remove(entry) })
//
//	if err := send(); err != nil {
//	  return err // entry is removed again
//	}
//	r.Skip()
type R struct {
	undo []func()
}

// Append registers f to run when the rollback is executed.
func (r *R) Append(f func()) {
	r.undo = append(r.undo, f)
}

// Skip forgets all steps appended so far. Steps appended afterwards still run
// on Execute.
func (r *R) Skip() {
	r.undo = nil
}

// Len returns the number of pending undo steps.
func (r *R) Len() int {
	return len(r.undo)
}

// Execute runs the pending steps, last appended first, and forgets them so a
// second call does nothing.
func (r *R) Execute() {
	for len(r.undo) > 0 {
		last := len(r.undo) - 1
		f := r.undo[last]
		r.undo = r.undo[:last]
		f()
	}
}
