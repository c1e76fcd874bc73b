package ttnotes

import (
	"fmt"
	"math"
	"strings"
)

// BuildTrainingNotes turns extracted metrics into a detailed training summary.
func BuildTrainingNotes(a *Analysis) string {
	if a == nil {
		return ""
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Session: %s\n", describeSource(a))
	if !a.StartTime.IsZero() {
		fmt.Fprintf(&b, "Start: %s\n", a.StartTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(
		&b,
		"Duration %s (moving %s) | Distance %.2f km | Calories %d\n",
		formatDuration(a.ElapsedSeconds),
		formatDuration(a.MovingSeconds),
		a.DistanceMeters/1000.0,
		a.Calories,
	)
	fmt.Fprintf(
		&b,
		"Pace %s/km avg | Speed %.1f avg / %.1f max km/h",
		formatPace(a.AvgPaceSecPerKm),
		mpsToKmh(a.AvgSpeedMps),
		mpsToKmh(a.MaxSpeedMps),
	)
	if a.Best1KmSeconds > 0 {
		fmt.Fprintf(&b, " | Best 1 km %s", formatDuration(a.Best1KmSeconds))
	}
	b.WriteByte('\n')
	fmt.Fprintf(
		&b,
		"HR %.0f avg / %.0f max bpm | Cadence %.0f avg / %.0f max\n",
		a.AvgHeartRate,
		a.MaxHeartRate,
		a.AvgCadence,
		a.MaxCadence,
	)
	if a.GPSDistanceMeters > 0 && a.DistanceMeters > 0 {
		gap := (a.GPSDistanceMeters/a.DistanceMeters - 1) * 100
		if math.Abs(gap) >= 3 {
			fmt.Fprintf(&b, "GPS track distance differs from the watch odometer by %+.1f%%\n", gap)
		}
	}
	if a.PaceHRDecoupling != 0 {
		fmt.Fprintf(&b, "Pace:HR decoupling: %+.1f%%\n", a.PaceHRDecoupling)
	}

	if len(a.HeartRateZones) > 0 {
		fmt.Fprintf(&b, "\nHeart Rate Zones (max %.0f bpm, %s)\n", a.ReferenceMaxHR, a.ReferenceMaxHRSource)
		for _, z := range a.HeartRateZones {
			if z.Seconds <= 0 {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s (%.1f%%)\n", z.Zone, formatDuration(z.Seconds), z.Percentage)
		}
	}

	b.WriteString("\nInterval Execution\n")
	if a.Intervals.WorkCount > 0 {
		fmt.Fprintf(
			&b,
			"- Detected %d work intervals at %s/km for %s on average.\n",
			a.Intervals.WorkCount,
			formatPace(paceFromSpeed(a.Intervals.AvgWorkSpeedMps)),
			formatDuration(a.Intervals.AvgWorkDurationSeconds),
		)
		if a.Intervals.RecoveryCount > 0 {
			fmt.Fprintf(
				&b,
				"- Recovery jogs: %d reps at %s/km for %s.\n",
				a.Intervals.RecoveryCount,
				formatPace(paceFromSpeed(a.Intervals.AvgRecoverySpeedMps)),
				formatDuration(a.Intervals.AvgRecoveryDurationSeconds),
			)
		}
		if a.Intervals.StrideCount > 0 {
			fmt.Fprintf(&b, "- Strides: %d short fast pickups.\n", a.Intervals.StrideCount)
		}
		fmt.Fprintf(
			&b,
			"- Work interval trend: speed %+.1f%%, cadence %+.1f%%, HR %+.0f bpm (first to last interval).\n",
			a.Intervals.WorkSpeedChangePct,
			a.Intervals.WorkCadenceChangePct,
			a.Intervals.WorkHeartRateChange,
		)
	} else {
		b.WriteString("- No repeating fast interval structure was confidently detected from lap data.\n")
	}

	if a.WorkoutStructure.CanonicalLabel != "" {
		b.WriteString("\nWorkout Structure\n")
		fmt.Fprintf(
			&b,
			"- %s (confidence %.0f%%)\n",
			a.WorkoutStructure.CanonicalLabel,
			a.WorkoutStructure.Confidence*100.0,
		)
		if ms := a.WorkoutStructure.MainSet; ms != nil {
			fmt.Fprintf(
				&b,
				"- Main set execution: %s, drift %+.1f%% speed / %+.1f%% cadence / %+.0f bpm HR.\n",
				ms.Prescription,
				ms.SpeedDriftPct,
				ms.CadenceDriftPct,
				ms.HeartRateDriftBPM,
			)
		}
	}

	if len(a.Diagnostics) > 0 {
		b.WriteString("\nData Quality\n")
		fmt.Fprintf(&b, "- The decoder recovered from %d damaged or unexpected record(s).\n", len(a.Diagnostics))
	}

	b.WriteString("\nCoaching Notes\n")
	b.WriteString("- ")
	b.WriteString(coachingAssessment(a))
	b.WriteString("\n- ")
	b.WriteString(nextSessionSuggestion(a))
	b.WriteByte('\n')

	return strings.TrimSpace(b.String())
}

func coachingAssessment(a *Analysis) string {
	if a == nil {
		return "No assessment available."
	}
	if a.Intervals.WorkCount >= 3 {
		switch {
		case math.Abs(a.Intervals.WorkSpeedChangePct) <= 2:
			return "Reps were evenly paced; repeatability was strong."
		case a.Intervals.WorkSpeedChangePct < -5:
			return "Pace faded over the set, which suggests the targets sat near your current limit."
		case a.Intervals.WorkSpeedChangePct > 5:
			return "Reps got faster through the set; the opening targets were conservative."
		default:
			return "Interval pacing was acceptable with moderate fatigue signals; aim for more even splits."
		}
	}
	if a.PaceHRDecoupling < -5 {
		return "Pace per heartbeat dropped in the second half; aerobic durability is the limiter at this duration."
	}
	return "Aerobic load appears manageable and supports base development."
}

func nextSessionSuggestion(a *Analysis) string {
	if a == nil {
		return "No recommendation available."
	}
	if a.Intervals.WorkCount >= 4 && math.Abs(a.Intervals.WorkSpeedChangePct) <= 2 {
		return "If recovery is good, progress by adding one rep or taking 2-3 s/km off the target pace."
	}
	if a.Intervals.WorkCount >= 4 && a.Intervals.WorkSpeedChangePct < -5 {
		return "Repeat this session before progressing, starting the first reps slightly slower."
	}
	if a.Intervals.WorkCount > 0 {
		return "Follow with an easy run to absorb the quality work."
	}
	return "Keep easy volume consistent and add strides once or twice a week."
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	s := int(math.Round(seconds))
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

func mpsToKmh(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return v * 3.6
}
