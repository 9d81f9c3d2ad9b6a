// Command vid2srt transcribes video files to SubRip subtitles.
//
// The transcribe command extracts the audio track with ffmpeg, runs it
// through a language-selected ASR engine, aligns word timings, optionally
// labels speakers, and writes SRT. Progress is reported as one
// PROGRESS_JSON: line per event so supervising processes can track the run.
package main
