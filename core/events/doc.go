// Package events defines the typed events emitted by the conversation loop.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - wake.*
//   - session.*
//   - user_input.*
//   - assistant_response.*
//   - assistant_speech.*
//   - assistant_playback.*
//   - turn_state.*
//
// wake events
//
//   - WakeDetected (wake.detected): wake phrase heard while idle.
//
// session events
//
//   - SessionStarted (session.started): conversation opened; carries its id.
//   - SessionFailed (session.failed): conversation could not be opened.
//   - SessionEnded (session.ended): loop dropped the conversation and went
//     back to waiting for the wake phrase.
//
// user_input events
//
//   - UserRecordingStarted (user_input.recording_started): push-to-talk
//     pressed, recording began.
//   - UserRecordingProgress (user_input.recording_progress): advisory elapsed
//     recording time, emitted from the progress observer.
//   - UserRecordingStopped (user_input.recording_stopped): recording ended;
//     carries duration and size.
//   - UserTranscriptFinal (user_input.transcript_final): recognized text, may
//     be empty.
//
// assistant_response events
//
//   - AssistantResponseFinal (assistant_response.final): aggregated reply text.
//
// assistant_speech events
//
//   - AssistantSpeechSynthesized (assistant_speech.synthesized): reply audio is
//     ready.
//
// assistant_playback events
//
//   - AssistantPlaybackStarted (assistant_playback.started): clip playback
//     started.
//   - AssistantPlaybackEnded (assistant_playback.ended): clip playback ended.
//
// turn_state events
//
//   - TurnCompleted (turn_state.completed): reply played, loop stays in the
//     session.
//   - TurnSkipped (turn_state.skipped): nothing recognized or nothing to say,
//     loop stays in the session.
//   - TurnFailed (turn_state.failed): a step failed, the session is dropped.
package events
