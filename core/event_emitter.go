package orchestration

import "github.com/koscakluka/ema-assistant/core/events"

type eventEmitter func(events.Event)

func newCallbackEventEmitter(opts OrchestrateOptions) eventEmitter {
	return func(event events.Event) {
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.UserRecordingProgress:
			if opts.onRecordingProgress != nil {
				opts.onRecordingProgress(typedEvent.Elapsed)
			}
		case events.UserTranscriptFinal:
			if opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Transcript)
			}
		case events.AssistantResponseFinal:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.Response)
			}
		case events.SessionFailed:
			if opts.onFailure != nil {
				opts.onFailure(typedEvent.Step, typedEvent.Err)
			}
		case events.TurnFailed:
			if opts.onFailure != nil {
				opts.onFailure(typedEvent.Step, typedEvent.Err)
			}
		}
	}
}
