package profiler

// supportedLinuxDistros are the /etc/os-release ID values this profiler
// recognizes; all of them share the same command pipeline.
var supportedLinuxDistros = []string{"ubuntu", "centos", "red hat", "debian", "linux"}

// commandSet names the shell commands used to populate a ProfileRecord for
// one platform family. Not every family reports every field (mac_os and
// windows have no has_gpus/gpu_count probe, only gpu_info) — callers treat
// a missing key as "not probed" rather than an error.
type commandSet map[string]string

var linuxCommands = commandSet{
	"kernel_name":      "uname -s",
	"machine":          "uname -m",
	"cpu_count":        "nproc",
	"memory_total":     `free -g | grep "Mem" | awk '{print $2}'`,
	"has_gpus":         "nvidia-smi -L | wc -l",
	"gpu_count":        "nvidia-smi --query-gpu=gpu_name --format=csv,noheader | wc -l",
	"gpu_info":         "nvidia-smi --query-gpu=gpu_name --format=csv",
	"free_disk_space":  `df -h | grep "/$" | awk '{print substr($4, 1, length($4)-1)}'`,
}

var macOSCommands = commandSet{
	"kernel_name":     "uname -s",
	"machine":         "uname -m",
	"cpu_count":       "sysctl -n hw.ncpu",
	"memory_total":    "sysctl -n hw.memsize",
	"gpu_info":        "system_profiler SPDisplaysDataType",
	"free_disk_space": `df -h | grep -w "/System/Volumes/Data$" | awk '{print $4}'`,
}

var windowsCommands = commandSet{
	"kernel_name":     "uname -s",
	"machine":         "uname -m",
	"cpu_count":       "wmic cpu get NumberOfLogicalProcessors",
	"memory_total":    "wmic computersystem get TotalPhysicalMemory",
	"gpu_info":        "wmic path win32_VideoController get Name,AdapterRAM",
	"free_disk_space": `df -h | grep -w "/System/Volumes/Data$" | awk '{print $4}'`,
}

// osCommands maps every recognized platformFamily to its commandSet.
var osCommands = buildOSCommands()

func buildOSCommands() map[string]commandSet {
	m := make(map[string]commandSet, len(supportedLinuxDistros)+2)
	for _, distro := range supportedLinuxDistros {
		m[distro] = linuxCommands
	}
	m["mac_os"] = macOSCommands
	m["windows"] = windowsCommands
	return m
}
