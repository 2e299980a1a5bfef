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

package stream

// SourceFuncs implements SourceBehavior with function fields. A nil InitFunc
// starts from the zero state, a nil IsDoneFunc never reports exhaustion.
type SourceFuncs[S, Out any] struct {
	InitFunc    func(p Payload) (S, error)
	PullFunc    func(state S, out *Downstream[Out], demand uint64) (S, error)
	IsDoneFunc  func(state S) bool
	CleanupFunc func(state S, reason error)
}

var (
	_ SourceBehavior[int, int]     = SourceFuncs[int, int]{}
	_ Cleaner[int]                 = SourceFuncs[int, int]{}
	_ StageBehavior[int, int, int] = StageFuncs[int, int, int]{}
	_ SinkBehavior[int, int, int]  = SinkFuncs[int, int, int]{}
	_ Cleaner[int]                 = SinkFuncs[int, int, int]{}
)

func (f SourceFuncs[S, Out]) Init(p Payload) (S, error) {
	if f.InitFunc == nil {
		var zero S
		return zero, nil
	}
	return f.InitFunc(p)
}

func (f SourceFuncs[S, Out]) Pull(state S, out *Downstream[Out], demand uint64) (S, error) {
	return f.PullFunc(state, out, demand)
}

func (f SourceFuncs[S, Out]) IsDone(state S) bool {
	if f.IsDoneFunc == nil {
		return false
	}
	return f.IsDoneFunc(state)
}

func (f SourceFuncs[S, Out]) Cleanup(state S, reason error) {
	if f.CleanupFunc != nil {
		f.CleanupFunc(state, reason)
	}
}

// StageFuncs implements StageBehavior with function fields.
type StageFuncs[S, In, Out any] struct {
	InitFunc    func(p Payload) (S, error)
	StepFunc    func(state S, in In, out *Downstream[Out]) (S, error)
	CleanupFunc func(state S, reason error)
}

func (f StageFuncs[S, In, Out]) Init(p Payload) (S, error) {
	if f.InitFunc == nil {
		var zero S
		return zero, nil
	}
	return f.InitFunc(p)
}

func (f StageFuncs[S, In, Out]) Step(state S, in In, out *Downstream[Out]) (S, error) {
	return f.StepFunc(state, in, out)
}

func (f StageFuncs[S, In, Out]) Cleanup(state S, reason error) {
	if f.CleanupFunc != nil {
		f.CleanupFunc(state, reason)
	}
}

// SinkFuncs implements SinkBehavior with function fields. A nil FinalizeFunc
// returns the state itself, which then has to be of type R.
type SinkFuncs[S, In, R any] struct {
	InitFunc     func(p Payload) (S, error)
	StepFunc     func(state S, in In) (S, error)
	FinalizeFunc func(state S) (R, error)
	CleanupFunc  func(state S, reason error)
}

func (f SinkFuncs[S, In, R]) Init(p Payload) (S, error) {
	if f.InitFunc == nil {
		var zero S
		return zero, nil
	}
	return f.InitFunc(p)
}

func (f SinkFuncs[S, In, R]) Step(state S, in In) (S, error) {
	return f.StepFunc(state, in)
}

func (f SinkFuncs[S, In, R]) Finalize(state S) (R, error) {
	if f.FinalizeFunc == nil {
		return coerce[R](state)
	}
	return f.FinalizeFunc(state)
}

func (f SinkFuncs[S, In, R]) Cleanup(state S, reason error) {
	if f.CleanupFunc != nil {
		f.CleanupFunc(state, reason)
	}
}
