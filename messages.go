package main

// actorView is the broadcast form of a connected actor.
type actorView struct {
	ID  string     `json:"id"`
	Pos [3]float64 `json:"pos"`
	Yaw float64    `json:"yaw"`
}

// droneView is the broadcast form of a live drone.
type droneView struct {
	ID      string     `json:"id"`
	Owner   string     `json:"owner"`
	Pos     [3]float64 `json:"pos"`
	Yaw     float64    `json:"yaw"`
	LightOn bool       `json:"lightOn"`
	Pending int        `json:"pending"`
}

// objectView is the broadcast form of scenery: terrain and practice dummies.
type objectView struct {
	ID      string     `json:"id"`
	Group   string     `json:"group"`
	Pos     [3]float64 `json:"pos"`
	Radius  float64    `json:"radius"`
	Tagged  bool       `json:"tagged"`
	Opacity float64    `json:"opacity,omitempty"`
}

type joinResponse struct {
	ID      string       `json:"id"`
	Actors  []actorView  `json:"actors"`
	Drones  []droneView  `json:"drones"`
	Objects []objectView `json:"objects"`
	Effects []Effect     `json:"effects"`
}

type stateMessage struct {
	Type       string       `json:"type"`
	Actors     []actorView  `json:"actors"`
	Drones     []droneView  `json:"drones"`
	Objects    []objectView `json:"objects"`
	Effects    []Effect     `json:"effects"`
	ServerTime int64        `json:"serverTime"`
}

// clientMessage is every inbound websocket message; Type selects which
// fields matter.
type clientMessage struct {
	Type    string  `json:"type"`
	DX      float64 `json:"dx"`
	DY      float64 `json:"dy"`
	DZ      float64 `json:"dz"`
	DroneID string  `json:"droneId"`
}

// serverEvent reports the outcome of a client request, such as a spawn.
type serverEvent struct {
	Type    string `json:"type"`
	DroneID string `json:"droneId,omitempty"`
	Error   string `json:"error,omitempty"`
}
