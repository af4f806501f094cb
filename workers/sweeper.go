package workers

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"pong-session-service/services"
)

// StaleSweeper is the safety net behind the event-driven cleanup paths: any
// finished room or bracket that slipped past its own teardown (a dropped
// timer, a crashed fan-out) gets collected on the next sweep.
type StaleSweeper struct {
	rooms       *services.RoomService
	tournaments *services.TournamentService
	interval    time.Duration

	sched gocron.Scheduler
}

func NewStaleSweeper(rooms *services.RoomService, tournaments *services.TournamentService, interval time.Duration) *StaleSweeper {
	return &StaleSweeper{
		rooms:       rooms,
		tournaments: tournaments,
		interval:    interval,
	}
}

func (w *StaleSweeper) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	w.sched = sched
	sched.Start()

	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(w.Sweep),
	)
	if err != nil {
		return err
	}

	log.Printf("[Sweeper] 🧹 started, interval=%s", w.interval)
	return nil
}

func (w *StaleSweeper) Stop() {
	if w.sched != nil {
		_ = w.sched.Shutdown()
	}
}

// Sweep collects every finished room and bracket still registered.
func (w *StaleSweeper) Sweep() {
	swept := 0

	for _, roomID := range w.rooms.RoomIDs() {
		room, ok := w.rooms.Room(roomID)
		if !ok || !room.Finished() {
			continue
		}
		w.rooms.DeleteRoom(roomID)
		swept++
	}

	for _, bracketID := range w.tournaments.BracketIDs() {
		bracket, ok := w.tournaments.Bracket(bracketID)
		if !ok || bracket.Status() != services.BracketFinished {
			continue
		}
		w.tournaments.DeleteBracket(bracketID)
		swept++
	}

	if swept > 0 {
		log.Printf("[Sweeper] 🧹 collected %d stale resource(s)", swept)
	}
}
