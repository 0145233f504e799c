// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "mouseTube")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/mousetube.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 10*1024*1024)
	viper.SetDefault("main.log.rotationday", time.Sunday)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", DefaultWebPort)
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "logs/web.log")
	viper.SetDefault("webserver.log.rotation", RotationDaily)
	viper.SetDefault("webserver.log.maxsize", 10*1024*1024)
	viper.SetDefault("webserver.log.rotationday", time.Sunday)

	viper.SetDefault("security.debug", false)
	viper.SetDefault("security.host", "")
	viper.SetDefault("security.baseurl", "")
	viper.SetDefault("security.autotls", false)
	viper.SetDefault("security.redirecttohttps", false)
	viper.SetDefault("security.sessionsecret", "")
	viper.SetDefault("security.sessionduration", 7*24*time.Hour)
	viper.SetDefault("security.accesstokenexp", 24*time.Hour)
	viper.SetDefault("security.allowsubnetbypass.enabled", false)
	viper.SetDefault("security.allowsubnetbypass.subnet", "")
	viper.SetDefault("security.basicauth.enabled", false)
	viper.SetDefault("security.basicauth.clientid", "mousetube-client")
	viper.SetDefault("security.basicauth.authcodeexp", 10*time.Minute)
	viper.SetDefault("security.basicauth.accesstokenexp", time.Hour)
	viper.SetDefault("security.orcidauth.enabled", false)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "mousetube.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "mousetube")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "mousetube")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", 3306)

	viper.SetDefault("media.basepath", "media/")
	viper.SetDefault("media.temppath", "media/temp/")
	viper.SetDefault("media.maxuploadsizemb", 512)
	viper.SetDefault("media.allowedtypes", []string{".wav", ".flac"})
	viper.SetDefault("media.spectrogram.enabled", true)
	viper.SetDefault("media.spectrogram.width", 800)
	viper.SetDefault("media.spectrogram.style", SpectrogramStyleDefault)
	viper.SetDefault("media.cleanup.enabled", true)
	viper.SetDefault("media.cleanup.maxage", "48h")
	viper.SetDefault("media.cleanup.interval", "1h")
	viper.SetDefault("media.cleanup.debug", false)

	viper.SetDefault("zenodo.enabled", false)
	viper.SetDefault("zenodo.debug", false)
	viper.SetDefault("zenodo.apiurl", DefaultZenodoAPIURL)
	viper.SetDefault("zenodo.accesstoken", "")
	viper.SetDefault("zenodo.community", DefaultZenodoCommunity)

	viper.SetDefault("mail.enabled", false)
	viper.SetDefault("mail.debug", false)
	viper.SetDefault("mail.smtpurl", "")
	viper.SetDefault("mail.from", "contact@mousetube.pasteur.fr")
	viper.SetDefault("mail.sitename", "mouseTube")
	viper.SetDefault("mail.frontendbaseurl", "")
	viper.SetDefault("mail.adminemail", "")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.debug", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "mousetube")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("backup.enabled", false)
	viper.SetDefault("backup.debug", false)
	viper.SetDefault("backup.schedule", "02:00")
	viper.SetDefault("backup.retention.maxage", "30d")
	viper.SetDefault("backup.retention.maxbackups", 30)
	viper.SetDefault("backup.retention.minbackups", 7)
	viper.SetDefault("backup.targets", []BackupTarget{})

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
