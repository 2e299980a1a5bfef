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

import (
	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/sourcegraph/conc/panics"
)

// Downstream collects the elements a behavior emits in one callback.
type Downstream[T any] struct {
	elems []any
}

// Push emits elements downstream.
func (d *Downstream[T]) Push(vs ...T) {
	for _, v := range vs {
		d.elems = append(d.elems, v)
	}
}

// Len returns the number of elements pushed so far in this callback.
func (d *Downstream[T]) Len() int {
	return len(d.elems)
}

// SourceBehavior produces the elements of a stream. State S is threaded
// through every call, Out is the element type.
type SourceBehavior[S, Out any] interface {
	// Init builds the initial state from the source's own payload.
	Init(p Payload) (S, error)
	// Pull pushes at most demand elements into out. Pushing more aborts the
	// stream with ErrBufferOverflow.
	Pull(state S, out *Downstream[Out], demand uint64) (S, error)
	// IsDone reports whether the source is exhausted. It is asked before
	// every pull and once more after the buffer was flushed.
	IsDone(state S) bool
}

// StageBehavior transforms every element of a stream into zero or more
// elements.
type StageBehavior[S, In, Out any] interface {
	// Init builds the initial state from the upstream's payload.
	Init(p Payload) (S, error)
	// Step handles one element.
	Step(state S, in In, out *Downstream[Out]) (S, error)
	// Cleanup is called once the stream ends, reason is nil if it closed
	// normally.
	Cleanup(state S, reason error)
}

// SinkBehavior folds every element of a stream into a result.
type SinkBehavior[S, In, R any] interface {
	// Init builds the initial state from the upstream's payload.
	Init(p Payload) (S, error)
	// Step folds one element into the state.
	Step(state S, in In) (S, error)
	// Finalize produces the result once the stream closed.
	Finalize(state S) (R, error)
}

// Cleaner can be implemented by a source or sink behavior to get notified
// when a stream ends.
type Cleaner[S any] interface {
	Cleanup(state S, reason error)
}

// SourceHandler is a type-erased source behavior, see Source.
type SourceHandler interface {
	newSource(p Payload) (sourceInstance, error)
}

// StageHandler is a type-erased stage behavior, see Stage.
type StageHandler interface {
	newStage(p Payload) (stageInstance, error)
	expansion() uint64
}

// SinkHandler is a type-erased sink behavior, see Sink.
type SinkHandler interface {
	newSink(p Payload) (sinkInstance, error)
}

type sourceInstance interface {
	pull(demand uint64, limit uint64) ([]any, error)
	done() (bool, error)
	cleanup(reason error)
}

type stageInstance interface {
	step(in any) ([]any, error)
	cleanup(reason error)
}

type sinkInstance interface {
	step(in any) error
	finalize() (any, error)
	cleanup(reason error)
}

// guard runs a behavior callback and turns a panic into an error.
func guard(f func() error) error {
	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() { err = f() })
	if r := pc.Recovered(); r != nil {
		return r.AsError()
	}
	return err
}

// Source adapts a typed source behavior.
func Source[S, Out any](b SourceBehavior[S, Out]) SourceHandler {
	return sourceAdapter[S, Out]{b: b}
}

type sourceAdapter[S, Out any] struct {
	b SourceBehavior[S, Out]
}

func (a sourceAdapter[S, Out]) newSource(p Payload) (sourceInstance, error) {
	var state S
	err := guard(func() (err error) {
		state, err = a.b.Init(p)
		return err
	})
	if err != nil {
		return nil, initFailed(err)
	}
	return &sourceRun[S, Out]{b: a.b, state: state}, nil
}

type sourceRun[S, Out any] struct {
	b     SourceBehavior[S, Out]
	state S
}

func (r *sourceRun[S, Out]) pull(demand uint64, limit uint64) ([]any, error) {
	var out Downstream[Out]
	err := guard(func() (err error) {
		r.state, err = r.b.Pull(r.state, &out, demand)
		return err
	})
	if err != nil {
		return nil, runtimeErr(err)
	}
	if n := uint64(len(out.elems)); n > demand {
		return nil, cerrors.Errorf("%w: source pushed %d elements for a demand of %d", ErrBufferOverflow, n, demand)
	}
	if uint64(len(out.elems)) > limit {
		return nil, cerrors.Errorf("%w: source pushed %d elements with room for %d", ErrBufferOverflow, len(out.elems), limit)
	}
	return out.elems, nil
}

func (r *sourceRun[S, Out]) done() (bool, error) {
	var done bool
	if err := guard(func() error {
		done = r.b.IsDone(r.state)
		return nil
	}); err != nil {
		return false, runtimeErr(err)
	}
	return done, nil
}

func (r *sourceRun[S, Out]) cleanup(reason error) {
	if c, ok := r.b.(Cleaner[S]); ok {
		_ = guard(func() error {
			c.Cleanup(r.state, reason)
			return nil
		})
	}
}

// StageOption configures a stage adapter.
type StageOption func(*stageOptions)

type stageOptions struct {
	expansion uint64
}

// WithExpansion sets the maximum number of elements a stage emits for one
// input element. Emitting more is a runtime error. Defaults to 1.
func WithExpansion(n uint64) StageOption {
	return func(o *stageOptions) {
		if n > 0 {
			o.expansion = n
		}
	}
}

// Stage adapts a typed stage behavior.
func Stage[S, In, Out any](b StageBehavior[S, In, Out], opts ...StageOption) StageHandler {
	o := stageOptions{expansion: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return stageAdapter[S, In, Out]{b: b, opts: o}
}

type stageAdapter[S, In, Out any] struct {
	b    StageBehavior[S, In, Out]
	opts stageOptions
}

func (a stageAdapter[S, In, Out]) expansion() uint64 { return a.opts.expansion }

func (a stageAdapter[S, In, Out]) newStage(p Payload) (stageInstance, error) {
	var state S
	err := guard(func() (err error) {
		state, err = a.b.Init(p)
		return err
	})
	if err != nil {
		return nil, initFailed(err)
	}
	return &stageRun[S, In, Out]{b: a.b, state: state, expansion: a.opts.expansion}, nil
}

type stageRun[S, In, Out any] struct {
	b         StageBehavior[S, In, Out]
	state     S
	expansion uint64
}

func (r *stageRun[S, In, Out]) step(v any) ([]any, error) {
	in, err := coerce[In](v)
	if err != nil {
		return nil, runtimeErr(err)
	}
	var out Downstream[Out]
	err = guard(func() (err error) {
		r.state, err = r.b.Step(r.state, in, &out)
		return err
	})
	if err != nil {
		return nil, runtimeErr(err)
	}
	if uint64(len(out.elems)) > r.expansion {
		return nil, cerrors.Errorf("%w: stage emitted %d elements for one input, expansion is %d", ErrBufferOverflow, len(out.elems), r.expansion)
	}
	return out.elems, nil
}

func (r *stageRun[S, In, Out]) cleanup(reason error) {
	_ = guard(func() error {
		r.b.Cleanup(r.state, reason)
		return nil
	})
}

// Sink adapts a typed sink behavior.
func Sink[S, In, R any](b SinkBehavior[S, In, R]) SinkHandler {
	return sinkAdapter[S, In, R]{b: b}
}

type sinkAdapter[S, In, R any] struct {
	b SinkBehavior[S, In, R]
}

func (a sinkAdapter[S, In, R]) newSink(p Payload) (sinkInstance, error) {
	var state S
	err := guard(func() (err error) {
		state, err = a.b.Init(p)
		return err
	})
	if err != nil {
		return nil, initFailed(err)
	}
	return &sinkRun[S, In, R]{b: a.b, state: state}, nil
}

type sinkRun[S, In, R any] struct {
	b     SinkBehavior[S, In, R]
	state S
}

func (r *sinkRun[S, In, R]) step(v any) error {
	in, err := coerce[In](v)
	if err != nil {
		return runtimeErr(err)
	}
	err = guard(func() (err error) {
		r.state, err = r.b.Step(r.state, in)
		return err
	})
	if err != nil {
		return runtimeErr(err)
	}
	return nil
}

func (r *sinkRun[S, In, R]) finalize() (any, error) {
	var res R
	err := guard(func() (err error) {
		res, err = r.b.Finalize(r.state)
		return err
	})
	if err != nil {
		return nil, runtimeErr(err)
	}
	return res, nil
}

func (r *sinkRun[S, In, R]) cleanup(reason error) {
	if c, ok := r.b.(Cleaner[S]); ok {
		_ = guard(func() error {
			c.Cleanup(r.state, reason)
			return nil
		})
	}
}
