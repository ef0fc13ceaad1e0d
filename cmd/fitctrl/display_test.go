//go:build test

package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/suite"

	"github.com/sgrimee/fitctrl/internal/ftms"
	"github.com/sgrimee/fitctrl/internal/testutils"
	"github.com/sgrimee/fitctrl/internal/treadmill"
)

func init() {
	// Deterministic output regardless of where the tests run
	color.NoColor = true
}

// DisplayTestSuite covers the presentation layer in isolation.
type DisplayTestSuite struct {
	CommandTestSuite
}

func (suite *DisplayTestSuite) newDisplay() (*Display, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return NewDisplay(out), out
}

// TestFormatHelpers tests the value formatting shared by tables and live lines
func (suite *DisplayTestSuite) TestFormatHelpers() {
	// GOAL: Verify telemetry values format exactly as shown to the user
	//
	// TEST SCENARIO: Format known values → compare against expected strings
	suite.Run("Time", func() {
		suite.Equal("2:05", FormatTime(125), "seconds MUST be zero-padded")
		suite.Equal("0:00", FormatTime(0))
		suite.Equal("0:59", FormatTime(59))
		suite.Equal("60:00", FormatTime(3600))
	})

	suite.Run("Speed", func() {
		suite.Equal("3.5 km/h", FormatSpeed(3.5))
		suite.Equal("0.0 km/h", FormatSpeed(0))
		suite.Equal("12.0 km/h", FormatSpeed(12))
	})

	suite.Run("Distance", func() {
		suite.Equal("999 m", FormatDistance(999), "distances under a kilometre MUST stay in metres")
		suite.Equal("1.00 km", FormatDistance(1000))
		suite.Equal("1.24 km", FormatDistance(1240))
		suite.Equal("0 m", FormatDistance(0))
	})

	suite.Run("Energy", func() {
		suite.Equal("45 kcal", FormatEnergy(45))
		suite.Equal("0 kcal", FormatEnergy(0))
	})

	suite.Run("Thousands", func() {
		suite.Equal("0", formatThousands(0))
		suite.Equal("999", formatThousands(999))
		suite.Equal("1,000", formatThousands(1000))
		suite.Equal("12,345", formatThousands(12345))
		suite.Equal("1,234,567", formatThousands(1234567))
		suite.Equal("-1,234", formatThousands(-1234))
	})
}

// TestMessageLines tests the prefixed message helpers
func (suite *DisplayTestSuite) TestMessageLines() {
	// GOAL: Verify info and error lines carry their prefixes
	//
	// TEST SCENARIO: Print each message kind → verify the exact line written
	d, out := suite.newDisplay()

	d.Info("Scanning for treadmill...")
	d.Error("Device not found")
	d.Println("plain text")
	d.Header("Device Information")
	d.Highlight("Goodbye!")

	ta := testutils.NewTextAsserter(suite.T())
	ta.Assert(out.String(), `Info: Scanning for treadmill...
Error: Device not found
plain text
Device Information
Goodbye!`)
}

// TestResultLines tests the control point outcome rendering
func (suite *DisplayTestSuite) TestResultLines() {
	// GOAL: Verify each result code maps to its fixed user-facing line
	//
	// TEST SCENARIO: Render every known code plus an unknown one → compare lines
	d, out := suite.newDisplay()

	d.Result("start", ftms.ResultSuccess)
	d.Result("pause", ftms.ResultNotSupported)
	d.Result("set_speed", ftms.ResultInvalidParameter)
	d.Result("stop", ftms.ResultFailed)
	d.Result("start", ftms.ResultNotPermitted)
	d.Result("start", ftms.ResultCode(0x09))

	ta := testutils.NewTextAsserter(suite.T())
	ta.Assert(out.String(), `✓ start succeeded
⚠ pause not supported by device
✗ set_speed invalid parameter
✗ stop failed
✗ start not permitted
? start result: UNKNOWN(0x09)`)
}

// TestStatusTable tests the two-column telemetry table
func (suite *DisplayTestSuite) TestStatusTable() {
	// GOAL: Verify the status table renders every metric in display units
	//
	// TEST SCENARIO: Render a populated and an empty snapshot → compare tables
	suite.Run("PopulatedSnapshot", func() {
		d, out := suite.newDisplay()
		d.StatusTable(treadmill.Telemetry{
			Status:   "MANUAL_MODE",
			Speed:    2.5,
			Distance: 1240,
			Time:     125,
			Steps:    3200,
			Calories: 45,
		})

		ta := testutils.NewTextAsserter(suite.T())
		ta.Assert(out.String(), `METRIC    VALUE
Status    MANUAL_MODE
Speed     2.5 km/h
Distance  1.24 km
Time      2:05
Steps     3,200
Calories  45 kcal`)
	})

	suite.Run("DisconnectedSnapshot", func() {
		d, out := suite.newDisplay()
		d.StatusTable(treadmill.Telemetry{Status: treadmill.StatusDisconnected})

		ta := testutils.NewTextAsserter(suite.T())
		ta.Assert(out.String(), `METRIC    VALUE
Status    DISCONNECTED
Speed     0.0 km/h
Distance  0 m
Time      0:00
Steps     0
Calories  0 kcal`)
	})
}

// TestLiveMode tests the live view toggle and rendering
func (suite *DisplayTestSuite) TestLiveMode() {
	// GOAL: Verify live mode renders frames only while enabled
	//
	// TEST SCENARIO: Toggle live on and off around frame updates → verify which frames print
	frame := treadmill.Telemetry{
		Status:   "MANUAL_MODE",
		Speed:    2.5,
		Distance: 100,
		Time:     60,
		Steps:    500,
		Calories: 20,
	}

	suite.Run("RendersFramesWhileEnabled", func() {
		d, out := suite.newDisplay()
		d.StartLive()
		suite.True(d.LiveEnabled())
		d.UpdateLive(frame)

		ta := testutils.NewTextAsserter(suite.T())
		ta.Assert(out.String(), `Info: Live display enabled ['live' to disable]
MANUAL_MODE | 2.5 km/h | 100 m | 1:00 | 500 steps | 20 kcal`)
	})

	suite.Run("DropsFramesWhileDisabled", func() {
		d, out := suite.newDisplay()
		d.UpdateLive(frame)
		suite.Empty(out.String(), "frames MUST NOT render while live mode is off")
	})

	suite.Run("StopIsIdempotent", func() {
		d, _ := suite.newDisplay()
		d.StartLive()
		d.StopLive()
		d.StopLive()
		suite.False(d.LiveEnabled())
	})
}

func TestDisplaySuite(t *testing.T) {
	suite.Run(t, new(DisplayTestSuite))
}
