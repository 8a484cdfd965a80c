// Package mujoco renders a segmented design as a MuJoCo kinematic chain:
// one mesh asset instanced per unit, each link nested in the previous one
// with a limited joint, plus cable sites and position actuators.
package mujoco

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/talgya/spirob/internal/layout"
	"github.com/talgya/spirob/internal/spiral"
)

// Chain is everything the XML export needs, derived once from the design.
type Chain struct {
	MeshFile      string
	UnitHeight    float64
	Scale         float64 // per-unit growth ratio gamma
	Units         int
	Joint         spiral.JointKind
	JointLimitDeg float64
	RobotLength   float64

	// TwoCable site positions on the reference unit, scaled per link.
	// Unused in three-cable mode, where sites sit on a ring.
	TwoCable  bool
	SiteUpper r2.Vec
	SiteLower r2.Vec
}

// NewChain derives the simulation chain from a design. The joint limit is the
// angular step: one unit may bend at most as far as the arc it replaced.
func NewChain(p spiral.Params, lay layout.Layout, meshFile string) Chain {
	c := Chain{
		MeshFile:      meshFile,
		UnitHeight:    lay.UnitHeight(),
		Scale:         lay.Gamma,
		Units:         lay.UnitCount(),
		Joint:         p.Joint(),
		JointLimitDeg: float64(p.DThetaDeg),
		RobotLength:   lay.RobotLength,
		TwoCable:      p.TwoCable,
	}
	if p.TwoCable {
		c.SiteUpper, c.SiteLower = lay.CableSites(p)
	}
	return c
}

// XML model element types. Attribute values are pre-formatted strings so the
// document carries a fixed six-decimal texture throughout.

type document struct {
	XMLName   xml.Name  `xml:"mujoco"`
	Model     string    `xml:"model,attr"`
	Compiler  compiler  `xml:"compiler"`
	Option    option    `xml:"option"`
	Size      sizeLimit `xml:"size"`
	Visual    visual    `xml:"visual"`
	Asset     asset     `xml:"asset"`
	Worldbody worldbody `xml:"worldbody"`
	Actuator  actuator  `xml:"actuator"`
}

type compiler struct {
	Angle   string `xml:"angle,attr"`
	MeshDir string `xml:"meshdir,attr"`
}

type option struct {
	Timestep   string `xml:"timestep,attr"`
	Iterations string `xml:"iterations,attr"`
	Solver     string `xml:"solver,attr"`
	Tolerance  string `xml:"tolerance,attr"`
}

type sizeLimit struct {
	NConMax string `xml:"nconmax,attr"`
	NJMax   string `xml:"njmax,attr"`
	NStack  string `xml:"nstack,attr"`
}

type visual struct {
	RGBA    visualRGBA    `xml:"rgba"`
	Quality visualQuality `xml:"quality"`
	Map     visualMap     `xml:"map"`
}

type visualRGBA struct {
	Haze string `xml:"haze,attr"`
}

type visualQuality struct {
	ShadowSize string `xml:"shadowsize,attr"`
}

type visualMap struct {
	Stiffness string `xml:"stiffness,attr"`
}

type asset struct {
	Mesh      mesh       `xml:"mesh"`
	Texture   texture    `xml:"texture"`
	Materials []material `xml:"material"`
}

type mesh struct {
	Name  string `xml:"name,attr"`
	File  string `xml:"file,attr"`
	Scale string `xml:"scale,attr"`
}

type texture struct {
	Name    string `xml:"name,attr"`
	Type    string `xml:"type,attr"`
	Builtin string `xml:"builtin,attr"`
	RGB1    string `xml:"rgb1,attr"`
	RGB2    string `xml:"rgb2,attr"`
	Width   string `xml:"width,attr"`
	Height  string `xml:"height,attr"`
	Mark    string `xml:"mark,attr"`
	MarkRGB string `xml:"markrgb,attr"`
}

type material struct {
	Name        string `xml:"name,attr"`
	Texture     string `xml:"texture,attr,omitempty"`
	TexRepeat   string `xml:"texrepeat,attr,omitempty"`
	TexUniform  string `xml:"texuniform,attr,omitempty"`
	Reflectance string `xml:"reflectance,attr,omitempty"`
	RGBA        string `xml:"rgba,attr,omitempty"`
}

type worldbody struct {
	Lights []light `xml:"light"`
	Geoms  []geom  `xml:"geom"`
	Body   *body   `xml:"body"`
}

type light struct {
	Directional string `xml:"directional,attr"`
	Diffuse     string `xml:"diffuse,attr"`
	Specular    string `xml:"specular,attr"`
	Pos         string `xml:"pos,attr"`
	Dir         string `xml:"dir,attr"`
}

type geom struct {
	Name     string `xml:"name,attr"`
	Type     string `xml:"type,attr"`
	Size     string `xml:"size,attr,omitempty"`
	Mesh     string `xml:"mesh,attr,omitempty"`
	Material string `xml:"material,attr,omitempty"`
	RGBA     string `xml:"rgba,attr,omitempty"`
}

type body struct {
	Name     string    `xml:"name,attr"`
	Pos      string    `xml:"pos,attr"`
	Geom     geom      `xml:"geom"`
	Inertial inertial  `xml:"inertial"`
	Joint    *armJoint `xml:"joint"`
	Sites    []site    `xml:"site"`
	Child    *body     `xml:"body"`
}

type inertial struct {
	Pos         string `xml:"pos,attr"`
	Mass        string `xml:"mass,attr"`
	DiagInertia string `xml:"diaginertia,attr"`
}

type armJoint struct {
	Name      string `xml:"name,attr"`
	Type      string `xml:"type,attr"`
	Axis      string `xml:"axis,attr"`
	Limited   string `xml:"limited,attr"`
	Range     string `xml:"range,attr"`
	Damping   string `xml:"damping,attr"`
	Stiffness string `xml:"stiffness,attr"`
}

type site struct {
	Name string `xml:"name,attr"`
	Pos  string `xml:"pos,attr"`
	Size string `xml:"size,attr"`
}

type actuator struct {
	Positions []position `xml:"position"`
}

type position struct {
	Name string `xml:"name,attr"`
	Site string `xml:"site,attr"`
	KP   string `xml:"kp,attr"`
	KV   string `xml:"kv,attr"`
}

func f6(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// Encode writes the chain as a MuJoCo model document.
func (c Chain) Encode(w io.Writer) error {
	doc := c.document()
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode mujoco model: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteFile writes the chain document to path.
func (c Chain) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := c.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (c Chain) document() document {
	doc := document{
		Model:    "spiral_robot",
		Compiler: compiler{Angle: "radian", MeshDir: "."},
		Option:   option{Timestep: "0.002", Iterations: "50", Solver: "Newton", Tolerance: "1e-10"},
		Size:     sizeLimit{NConMax: "500", NJMax: "1000", NStack: "10000000"},
		Visual: visual{
			RGBA:    visualRGBA{Haze: "0.15 0.25 0.35 1"},
			Quality: visualQuality{ShadowSize: "2048"},
			Map:     visualMap{Stiffness: "700"},
		},
		Asset: asset{
			Mesh: mesh{
				Name:  "unit_mesh",
				File:  c.MeshFile,
				Scale: f6(c.Scale) + " " + f6(c.Scale) + " " + f6(c.Scale),
			},
			Texture: texture{
				Name: "groundplane", Type: "2d", Builtin: "checker",
				RGB1: ".2 .3 .4", RGB2: ".1 .2 .3",
				Width: "100", Height: "100", Mark: "cross", MarkRGB: ".8 .8 .8",
			},
			Materials: []material{
				{Name: "groundplane", Texture: "groundplane", TexRepeat: "5 5", TexUniform: "true", Reflectance: ".2"},
				{Name: "robot", RGBA: "0.6 0.7 0.9 1"},
			},
		},
		Worldbody: worldbody{
			Lights: []light{
				{Directional: "true", Diffuse: ".8 .8 .8", Specular: ".2 .2 .2", Pos: "0 0 5", Dir: "0 0 -1"},
				{Directional: "true", Diffuse: ".4 .4 .4", Specular: ".1 .1 .1", Pos: "0 0 4", Dir: "0 -1 -1"},
			},
			Geoms: []geom{
				{Name: "ground", Type: "plane", Size: "10 10 0.1", Material: "groundplane"},
			},
			Body: c.baseBody(),
		},
		Actuator: actuator{Positions: c.actuators()},
	}
	return doc
}

// baseBody builds the fixed anchor with the link chain nested inside it,
// link i a child of link i-1 so every joint bends relative to its parent.
func (c Chain) baseBody() *body {
	base := &body{
		Name: "base",
		Pos:  "0 0 " + f6(c.UnitHeight),
		Geom: geom{Name: "base_geom", Type: "box", Size: "0.05 0.05 0.05", RGBA: "0.8 0.2 0.2 1"},
		Inertial: inertial{
			Pos: "0 0 0", Mass: "0.1", DiagInertia: "0.001 0.001 0.001",
		},
	}

	limit := f6(c.JointLimitDeg * 0.01745)
	parent := base
	unitScale := 1.0
	for i := 0; i < c.Units; i++ {
		inertia := f6(0.0001 * unitScale)
		link := &body{
			Name: fmt.Sprintf("link_%d", i),
			Pos:  f6(c.UnitHeight*unitScale) + " 0 0",
			Geom: geom{Name: fmt.Sprintf("geom_%d", i), Type: "mesh", Mesh: "unit_mesh", Material: "robot"},
			Inertial: inertial{
				Pos:         f6(c.UnitHeight*unitScale*0.5) + " 0 0",
				Mass:        f6(0.01 * unitScale),
				DiagInertia: inertia + " " + inertia + " " + inertia,
			},
			Joint: &armJoint{
				Name:    fmt.Sprintf("joint_%d", i),
				Type:    string(c.Joint),
				Axis:    "0 0 1",
				Limited: "true",
				Range:   "-" + limit + " " + limit,
				Damping: "0.1", Stiffness: "0.5",
			},
			Sites: c.sites(i, unitScale),
		}
		parent.Child = link
		parent = link
		unitScale *= c.Scale
	}
	return base
}

func (c Chain) sites(i int, unitScale float64) []site {
	if c.TwoCable {
		return []site{
			{
				Name: fmt.Sprintf("cable1_unit%d", i),
				Pos:  f6(c.SiteUpper.X*unitScale) + " " + f6(c.SiteUpper.Y*unitScale) + " 0",
				Size: "0.01",
			},
			{
				Name: fmt.Sprintf("cable2_unit%d", i),
				Pos:  f6(c.SiteLower.X*unitScale) + " " + f6(c.SiteLower.Y*unitScale) + " 0",
				Size: "0.01",
			},
		}
	}
	// Three cables on a ring: one at the top, two at 120 degrees below it.
	radius := c.RobotLength * 0.1
	x := f6(c.UnitHeight * unitScale * 0.5)
	return []site{
		{
			Name: fmt.Sprintf("cable1_unit%d", i),
			Pos:  x + " " + f6(radius*unitScale) + " 0",
			Size: "0.01",
		},
		{
			Name: fmt.Sprintf("cable2_unit%d", i),
			Pos:  x + " " + f6(-radius*unitScale*0.5) + " " + f6(radius*unitScale*0.866),
			Size: "0.01",
		},
		{
			Name: fmt.Sprintf("cable3_unit%d", i),
			Pos:  x + " " + f6(-radius*unitScale*0.5) + " " + f6(-radius*unitScale*0.866),
			Size: "0.01",
		},
	}
}

func (c Chain) actuators() []position {
	cables := 3
	if c.TwoCable {
		cables = 2
	}
	out := make([]position, 0, cables*c.Units)
	for i := 0; i < c.Units; i++ {
		for cable := 1; cable <= cables; cable++ {
			out = append(out, position{
				Name: fmt.Sprintf("cable%d_act%d", cable, i),
				Site: fmt.Sprintf("cable%d_unit%d", cable, i),
				KP:   "100",
				KV:   "10",
			})
		}
	}
	return out
}
