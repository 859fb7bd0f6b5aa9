// Package voice turns spoken transcripts into camera commands.
//
// Classification is a substring match on the normalized transcript:
//
//	"Could you please Start Camera"  -> StartCamera
//	"please STOP camera now"         -> StopCamera
//	"hello world"                    -> Unknown (ignored)
//
// "start camera" is checked before "stop camera", so a transcript that
// contains both starts the camera.
//
// The Interpreter keeps a recognition session open for the lifetime of the
// process, independent of the camera state. Recognizer failures are
// transient: the session is reopened after a backoff and the camera is
// never told about them.
//
// # Usage
//
//	interp := voice.NewInterpreter(recognizer, cameraManager, voice.DefaultConfig(), logger)
//	interp.OnStatus(func(msg string) { dashboard.SetStatus(msg) })
//	go interp.Run(ctx)
package voice
