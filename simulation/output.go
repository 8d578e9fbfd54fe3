package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/pthm-cable/leeway/ensemble"
	"github.com/pthm-cable/leeway/storage"
	"github.com/pthm-cable/leeway/telemetry"
)

// writeTrajectory records every particle's current position.
func (s *Simulation) writeTrajectory(ctx context.Context) error {
	if s.output == nil && s.store == nil {
		return nil
	}
	particles := s.ens.Particles()

	if s.output != nil {
		if err := s.output.WriteTrajectory(s.trajectoryRecords(particles)); err != nil {
			return err
		}
	}
	if s.store != nil && s.runID != 0 {
		if err := s.store.InsertPoints(ctx, s.runID, trajectoryPoints(s.step, s.now, particles)); err != nil {
			return fmt.Errorf("storing trajectory: %w", err)
		}
	}
	return nil
}

func (s *Simulation) trajectoryRecords(particles []ensemble.Particle) []telemetry.TrajectoryRecord {
	ts := s.now.UTC().Format(time.RFC3339)
	out := make([]telemetry.TrajectoryRecord, len(particles))
	for i, p := range particles {
		key := ""
		if props, ok := s.table.At(p.Leeway.ObjectType); ok {
			key = props.Key
		}
		out[i] = telemetry.TrajectoryRecord{
			Step:        s.step,
			Time:        ts,
			ID:          p.State.ID,
			ObjectType:  key,
			Orientation: p.Leeway.Orientation.String(),
			Status:      p.State.Status.String(),
			Color:       p.State.Status.Color(),
			Lon:         p.Position.Lon,
			Lat:         p.Position.Lat,
			AgeSeconds:  p.State.AgeSeconds,
		}
	}
	return out
}

func trajectoryPoints(step int, now time.Time, particles []ensemble.Particle) []storage.Point {
	out := make([]storage.Point, len(particles))
	for i, p := range particles {
		out[i] = storage.Point{
			Step:       step,
			Time:       now,
			ParticleID: p.State.ID,
			Status:     p.State.Status.String(),
			Lon:        p.Position.Lon,
			Lat:        p.Position.Lat,
		}
	}
	return out
}
