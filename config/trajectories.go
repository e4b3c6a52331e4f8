package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/skyrelay/groundcore/geodesy"
)

type trajectoryPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// ReadTrajectories loads the predicted paths of tracked ground objects
// from a JSON file keyed by object id, each id mapping to an ordered
// list of geodetic points. The planner covers the union of all points.
func ReadTrajectories(path string) (geodesy.TrajectorySet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading trajectories")
	}
	defer goutils.UncheckedErrorFunc(file.Close)

	var raw map[string][]trajectoryPoint
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "parsing trajectories")
	}

	set := make(geodesy.TrajectorySet, len(raw))
	for id, points := range raw {
		coords := make([]geodesy.Coordinate, 0, len(points))
		for _, p := range points {
			coords = append(coords, geodesy.NewCoordinate(p.Latitude, p.Longitude, p.Altitude))
		}
		set[id] = coords
	}
	return set, nil
}
