/*
Package scheduler drives poll-job enqueue on a cooperative ticker loop,
shaped like the teacher's container-placement scheduler
(_examples/cuemby-warren/pkg/scheduler/scheduler.go): one time.Ticker, a
stop channel, a mutex-guarded cycle function. Each tick lists schedulable
channels, computes eligibility (eligibility.go) against the dynamic
poll-interval setting plus injectable jitter (jitter.go), and enqueues a
poll job per eligible channel through the PollEnqueuer collaborator.

ChannelStore, PollEnqueuer, and SettingsResolver are narrow interfaces;
internal/app wires in an adapter over the channel repos,
storage.PollJobRepo, and settings.Resolver, so this package never imports
storage directly — the same narrow-interface shape internal/metrics.Snapshot
uses.
*/
package scheduler
