package silo

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for pipeline and store events.
var (
	SignalPipelineCompiled = capitan.NewSignal("silo.pipeline.compiled", "Chain pair compiled into a pipeline")
	SignalStoreWrite       = capitan.NewSignal("silo.store.write", "Value encoded and delegated to the backend")
	SignalStoreRead        = capitan.NewSignal("silo.store.read", "Value loaded from the backend and decoded")
	SignalCorruptValue     = capitan.NewSignal("silo.store.corrupt", "Stored payload failed to decode")
)

// Keys for typed event data.
var (
	KeyKeyChain   = capitan.NewStringKey("key_chain")
	KeyValueChain = capitan.NewStringKey("value_chain")
	KeyOperation  = capitan.NewStringKey("operation")
	KeySize       = capitan.NewIntKey("size")
	KeyDuration   = capitan.NewDurationKey("duration")
	KeyError      = capitan.NewErrorKey("error")
)

// emitPipelineCompiled emits an event when a chain pair finishes compiling.
func emitPipelineCompiled(ctx context.Context, keyChain, valueChain string) {
	capitan.Emit(ctx, SignalPipelineCompiled,
		KeyKeyChain.Field(keyChain),
		KeyValueChain.Field(valueChain),
	)
}

// emitStoreWrite emits an event after a write-side operation.
func emitStoreWrite(ctx context.Context, op string, size int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyOperation.Field(op),
		KeySize.Field(size),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalStoreWrite, fields...)
	} else {
		capitan.Emit(ctx, SignalStoreWrite, fields...)
	}
}

// emitStoreRead emits an event after a read-side operation.
func emitStoreRead(ctx context.Context, op string, size int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyOperation.Field(op),
		KeySize.Field(size),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalStoreRead, fields...)
	} else {
		capitan.Emit(ctx, SignalStoreRead, fields...)
	}
}

// emitCorruptValue emits an event when a stored payload fails to decode.
func emitCorruptValue(ctx context.Context, op string, err error) {
	capitan.Error(ctx, SignalCorruptValue,
		KeyOperation.Field(op),
		KeyError.Field(err),
	)
}
