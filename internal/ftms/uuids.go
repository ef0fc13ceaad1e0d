package ftms

// Fitness Machine Service and its treadmill characteristics.
const (
	ServiceUUID        = "1826"
	TreadmillDataUUID  = "2acd"
	TrainingStatusUUID = "2ad3"
	ControlPointUUID   = "2ad9"
)

// Device Information Service characteristics read once at session setup.
const (
	DeviceInfoServiceUUID = "180a"
	ManufacturerNameUUID  = "2a29"
	ModelNumberUUID       = "2a24"
	SerialNumberUUID      = "2a25"
	HardwareRevisionUUID  = "2a27"
	FirmwareRevisionUUID  = "2a26"
	SoftwareRevisionUUID  = "2a28"
)

// DeviceNameUUID is the GAP Device Name characteristic, more authoritative
// than the advertised local name.
const DeviceNameUUID = "2a00"
