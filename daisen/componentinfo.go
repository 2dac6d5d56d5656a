package daisen

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/sarchlab/twinrouter/tracing"
)

// TimeValue is one dot of a component chart.
type TimeValue struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// ComponentInfo is a time series that describes the tasks of a component.
type ComponentInfo struct {
	Name      string      `json:"name"`
	InfoType  string      `json:"info_type"`
	StartTime float64     `json:"start_time"`
	EndTime   float64     `json:"end_time"`
	Data      []TimeValue `json:"data"`
}

type timeRange struct {
	start, end float64
	numDots    int
}

func (tr timeRange) binDuration() float64 {
	return (tr.end - tr.start) / float64(tr.numDots)
}

func (tr timeRange) bin(i int) (start, end float64) {
	d := tr.binDuration()

	return tr.start + float64(i)*d, tr.start + float64(i+1)*d
}

func (s *Server) httpComponentInfo(w http.ResponseWriter, r *http.Request) {
	compName := r.FormValue("where")
	infoType := r.FormValue("info_type")

	tr, err := parseTimeRange(r)
	if badRequest(w, err) {
		return
	}

	query := tracing.TaskQuery{
		Where:           compName,
		Kind:            r.FormValue("kind"),
		EnableTimeRange: true,
		StartTime:       tr.start,
		EndTime:         tr.end,
	}

	tasks, err := s.reader.ListTasks(query)
	if internalError(w, err) {
		return
	}

	info := &ComponentInfo{
		Name:      compName,
		InfoType:  infoType,
		StartTime: tr.start,
		EndTime:   tr.end,
	}

	switch infoType {
	case "ReqInCount":
		info.Data = countRate(tasks, tr, taskStart)
	case "ReqCompleteCount":
		info.Data = countRate(tasks, tr, taskEnd)
	case "AvgLatency":
		info.Data = averageLatency(tasks, tr)
	case "ConcurrentTask":
		info.Data = timeWeightedTaskCount(tasks, tr)
	default:
		badRequest(w, errors.Errorf("unknown info_type %q", infoType))
		return
	}

	writeJSON(w, info)
}

func parseTimeRange(r *http.Request) (timeRange, error) {
	var (
		tr  timeRange
		err error
	)

	tr.start, err = strconv.ParseFloat(r.FormValue("start_time"), 64)
	if err != nil {
		return tr, errors.Wrap(err, "start_time")
	}

	tr.end, err = strconv.ParseFloat(r.FormValue("end_time"), 64)
	if err != nil {
		return tr, errors.Wrap(err, "end_time")
	}

	numDots, err := strconv.Atoi(r.FormValue("num_dots"))
	if err != nil {
		return tr, errors.Wrap(err, "num_dots")
	}

	if numDots <= 0 || tr.end <= tr.start {
		return tr, errors.New("empty time range")
	}

	tr.numDots = numDots

	return tr, nil
}

type taskTime func(t tracing.Task) float64

func taskStart(t tracing.Task) float64 { return float64(t.StartTime) }
func taskEnd(t tracing.Task) float64 { return float64(t.EndTime) }

// countRate returns the number of tasks per cycle whose selected time falls
// in each bin.
func countRate(
	tasks []tracing.Task,
	tr timeRange,
	at taskTime,
) []TimeValue {
	data := make([]TimeValue, 0, tr.numDots)

	for i := 0; i < tr.numDots; i++ {
		binStart, binEnd := tr.bin(i)

		count := 0
		for _, t := range tasks {
			if at(t) >= binStart && at(t) < binEnd {
				count++
			}
		}

		data = append(data, TimeValue{
			Time:  binStart + 0.5*tr.binDuration(),
			Value: float64(count) / tr.binDuration(),
		})
	}

	return data
}

// averageLatency returns the average duration of the tasks that complete in
// each bin.
func averageLatency(tasks []tracing.Task, tr timeRange) []TimeValue {
	data := make([]TimeValue, 0, tr.numDots)

	for i := 0; i < tr.numDots; i++ {
		binStart, binEnd := tr.bin(i)

		sum := 0.0
		count := 0
		for _, t := range tasks {
			if taskEnd(t) >= binStart && taskEnd(t) < binEnd {
				sum += taskEnd(t) - taskStart(t)
				count++
			}
		}

		value := 0.0
		if count > 0 {
			value = sum / float64(count)
		}

		data = append(data, TimeValue{
			Time:  binStart + 0.5*tr.binDuration(),
			Value: value,
		})
	}

	return data
}

type timestamp struct {
	time    float64
	isStart bool
}

// timeWeightedTaskCount returns the average number of tasks in flight during
// each bin.
func timeWeightedTaskCount(tasks []tracing.Task, tr timeRange) []TimeValue {
	timestamps := make([]timestamp, 0, len(tasks)*2)
	for _, t := range tasks {
		timestamps = append(timestamps,
			timestamp{time: taskStart(t), isStart: true},
			timestamp{time: taskEnd(t)},
		)
	}

	sort.SliceStable(timestamps, func(i, j int) bool {
		return timestamps[i].time < timestamps[j].time
	})

	data := make([]TimeValue, 0, tr.numDots)
	for i := 0; i < tr.numDots; i++ {
		binStart, binEnd := tr.bin(i)

		data = append(data, TimeValue{
			Time:  binStart + 0.5*tr.binDuration(),
			Value: averageTaskCount(timestamps, binStart, binEnd),
		})
	}

	return data
}

func averageTaskCount(
	timestamps []timestamp,
	binStart, binEnd float64,
) float64 {
	count := 0
	timeByCount := 0.0
	prevTime := binStart

	for _, ts := range timestamps {
		if ts.time >= binEnd {
			break
		}

		if ts.time > binStart {
			timeByCount += (ts.time - prevTime) * float64(count)
			prevTime = ts.time
		}

		if ts.isStart {
			count++
		} else {
			count--
		}
	}

	timeByCount += (binEnd - prevTime) * float64(count)

	return timeByCount / (binEnd - binStart)
}
